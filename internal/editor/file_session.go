package editor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pressfit/pressfit/internal/markup"
)

// FileSession edits a local markdown file. Submit copies the body to a
// sibling published path, which ReadPublished serves. Used for local
// workflows and as the collaborator double in tests.
type FileSession struct {
	path          string
	publishedPath string
}

// NewFileSession creates a session over the file at path.
func NewFileSession(path string) *FileSession {
	return &FileSession{
		path:          path,
		publishedPath: path + ".published",
	}
}

// Kind implements Session. A flat file behaves like a plain textarea.
func (s *FileSession) Kind() Kind {
	return KindTextarea
}

// ReadSnapshot implements Session.
func (s *FileSession) ReadSnapshot(ctx context.Context) (string, error) {
	return s.read(s.path)
}

// ReadLive implements Session. Files have no virtualization layer, so the
// live read is the same as the snapshot.
func (s *FileSession) ReadLive(ctx context.Context) (string, error) {
	return s.read(s.path)
}

func (s *FileSession) read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read article file: %w", err)
	}
	return string(data), nil
}

// Write implements Session.
func (s *FileSession) Write(ctx context.Context, text string) error {
	if err := os.WriteFile(s.path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write article file: %w", err)
	}
	return nil
}

// ApplySubstitutions implements Session with an in-place rewrite.
func (s *FileSession) ApplySubstitutions(ctx context.Context, subs *markup.SubstitutionMap) (PatchResult, error) {
	doc, err := s.read(s.path)
	if err != nil {
		return PatchResult{}, err
	}

	replaced := 0
	for _, entry := range subs.Entries() {
		replaced += strings.Count(doc, entry.Old)
	}

	if err := s.Write(ctx, subs.Apply(doc)); err != nil {
		return PatchResult{}, err
	}
	return PatchResult{OK: true, ReplacedCount: replaced}, nil
}

// Submit implements Session.
func (s *FileSession) Submit(ctx context.Context) (bool, error) {
	doc, err := s.read(s.path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(s.publishedPath, []byte(doc), 0o644); err != nil {
		return false, fmt.Errorf("publish article file: %w", err)
	}
	return true, nil
}

// ReadPublished implements PublishedReader.
func (s *FileSession) ReadPublished(ctx context.Context) (string, error) {
	return s.read(s.publishedPath)
}
