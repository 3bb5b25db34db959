package assetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// HTTPStore talks to an asset-hosting HTTP API: multipart upload returning a
// JSON record, and per-id delete.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPStore creates an HTTP-backed asset store. logger may be nil.
func NewHTTPStore(baseURL string, logger *zap.Logger) *HTTPStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStore{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Upload posts the file as multipart form data. Status 413 and 507 map to
// ErrQuotaExceeded so the orchestration can distinguish a full store from a
// transient failure.
func (s *HTTPStore) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read upload source: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	url := s.baseURL + "/api/v1/assets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge ||
		resp.StatusCode == http.StatusInsufficientStorage:
		return "", fmt.Errorf("%w: status %d", ErrQuotaExceeded, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, detail)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload response carried no URL")
	}
	return result.URL, nil
}

// Delete removes assets one id at a time. Failures are logged and collected,
// never fatal to the batch.
func (s *HTTPStore) Delete(ctx context.Context, ids []string) []string {
	var failed []string
	for _, id := range ids {
		if err := s.deleteOne(ctx, id); err != nil {
			s.logger.Warn("assetstore.delete_failed", zap.String("id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}
	return failed
}

func (s *HTTPStore) deleteOne(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/api/v1/assets/%s", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete failed with status %d", resp.StatusCode)
	}
	return nil
}
