package assetstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FilesystemStore keeps assets in a local directory and serves them under a
// configured public base URL. Used by file-backed runs and tests.
type FilesystemStore struct {
	baseDir       string
	publicBaseURL string
	logger        *zap.Logger
}

// NewFilesystemStore creates the base directory if needed. logger may be nil.
func NewFilesystemStore(baseDir, publicBaseURL string, logger *zap.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesystemStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Upload copies the file into the store directory under its base name and
// returns the public URL for it.
func (s *FilesystemStore) Upload(ctx context.Context, localPath string) (string, error) {
	name := filepath.Base(localPath)
	dest, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create stored asset: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copy asset: %w", err)
	}

	return s.publicBaseURL + "/" + name, nil
}

// Delete removes assets by file name.
func (s *FilesystemStore) Delete(ctx context.Context, ids []string) []string {
	var failed []string
	for _, id := range ids {
		path, err := s.resolve(id)
		if err == nil {
			err = os.Remove(path)
		}
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn("assetstore.delete_failed", zap.String("id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}
	return failed
}

// resolve joins name onto the base directory, refusing path traversal.
func (s *FilesystemStore) resolve(name string) (string, error) {
	path := filepath.Join(s.baseDir, name)
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid asset id: path traversal detected")
	}
	return path, nil
}
