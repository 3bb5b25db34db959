package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pressfit/pressfit/internal/markup"
)

// HTTPSession edits an article through a blog platform REST API. The API
// exposes both an edit-view body and a live body; the latter is
// authoritative.
type HTTPSession struct {
	baseURL    string
	articleID  string
	kind       Kind
	httpClient *http.Client
}

// NewHTTPSession creates a session for one article.
func NewHTTPSession(baseURL, articleID string, kind Kind) *HTTPSession {
	return &HTTPSession{
		baseURL:    baseURL,
		articleID:  articleID,
		kind:       kind,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Kind implements Session.
func (s *HTTPSession) Kind() Kind {
	return s.kind
}

type articleBody struct {
	Body string `json:"body"`
}

// ReadSnapshot implements Session.
func (s *HTTPSession) ReadSnapshot(ctx context.Context) (string, error) {
	return s.readBody(ctx, fmt.Sprintf("%s/api/v1/articles/%s", s.baseURL, s.articleID))
}

// ReadLive implements Session.
func (s *HTTPSession) ReadLive(ctx context.Context) (string, error) {
	return s.readBody(ctx, fmt.Sprintf("%s/api/v1/articles/%s/live", s.baseURL, s.articleID))
}

func (s *HTTPSession) readBody(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create read request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("read article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("read article: status %d", resp.StatusCode)
	}

	var article articleBody
	if err := json.NewDecoder(resp.Body).Decode(&article); err != nil {
		return "", fmt.Errorf("decode article body: %w", err)
	}
	return article.Body, nil
}

// Write implements Session.
func (s *HTTPSession) Write(ctx context.Context, text string) error {
	payload, err := json.Marshal(articleBody{Body: text})
	if err != nil {
		return fmt.Errorf("marshal article body: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/articles/%s", s.baseURL, s.articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("write article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("write article: status %d", resp.StatusCode)
	}
	return nil
}

type patchRequest struct {
	Substitutions []markup.Substitution `json:"substitutions"`
}

type patchResponse struct {
	OK            bool `json:"ok"`
	ReplacedCount int  `json:"replaced_count"`
}

// ApplySubstitutions implements Session. A patch endpoint rejection is
// reported through PatchResult.OK, not an error: the caller falls back to a
// full Write.
func (s *HTTPSession) ApplySubstitutions(ctx context.Context, subs *markup.SubstitutionMap) (PatchResult, error) {
	payload, err := json.Marshal(patchRequest{Substitutions: subs.Entries()})
	if err != nil {
		return PatchResult{}, fmt.Errorf("marshal patch request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/articles/%s/patch", s.baseURL, s.articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return PatchResult{}, fmt.Errorf("create patch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return PatchResult{}, fmt.Errorf("patch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotImplemented || resp.StatusCode == http.StatusMethodNotAllowed {
		return PatchResult{OK: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return PatchResult{}, fmt.Errorf("patch article: status %d", resp.StatusCode)
	}

	var result patchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PatchResult{}, fmt.Errorf("decode patch response: %w", err)
	}
	return PatchResult{OK: result.OK, ReplacedCount: result.ReplacedCount}, nil
}

// Submit implements Session.
func (s *HTTPSession) Submit(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/articles/%s/publish", s.baseURL, s.articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false, fmt.Errorf("create publish request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("publish article: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted, nil
}

// ReadPublished implements PublishedReader using the public article page,
// not the edit view.
func (s *HTTPSession) ReadPublished(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/articles/%s", s.baseURL, s.articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create published read request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("read published article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("read published article: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read published body: %w", err)
	}
	return string(data), nil
}
