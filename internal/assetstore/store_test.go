package assetstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempAsset(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestHTTPStoreUpload(t *testing.T) {
	var gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/assets", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotName = header.Filename

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "abc123",
			"url": "https://cdn.example.com/abc123.jpg",
		})
	}))
	defer server.Close()

	path := writeTempAsset(t, "img-0.jpg", []byte("jpeg-bytes"))
	url, err := NewHTTPStore(server.URL, nil).Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/abc123.jpg", url)
	assert.Equal(t, "img-0.jpg", gotName)
}

func TestHTTPStoreUploadQuotaExceeded(t *testing.T) {
	for _, status := range []int{http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		path := writeTempAsset(t, "img.jpg", []byte("x"))
		_, err := NewHTTPStore(server.URL, nil).Upload(context.Background(), path)
		assert.ErrorIs(t, err, ErrQuotaExceeded, "status %d", status)
		server.Close()
	}
}

func TestHTTPStoreUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	path := writeTempAsset(t, "img.jpg", []byte("x"))
	_, err := NewHTTPStore(server.URL, nil).Upload(context.Background(), path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestHTTPStoreDeleteBestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/api/v1/assets/ok":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/assets/gone":
			w.WriteHeader(http.StatusNotFound) // already deleted counts as success
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	failed := NewHTTPStore(server.URL, nil).Delete(context.Background(), []string{"ok", "gone", "broken"})
	assert.Equal(t, []string{"broken"}, failed)
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFilesystemStore(dir, "https://cdn.local/", nil)
	require.NoError(t, err)

	path := writeTempAsset(t, "img-1.png", []byte("png-bytes"))
	url, err := store.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.local/img-1.png", url)

	stored, err := os.ReadFile(filepath.Join(dir, "img-1.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), stored)

	failed := store.Delete(context.Background(), []string{"img-1.png", "missing.png"})
	assert.Empty(t, failed)
	_, err = os.Stat(filepath.Join(dir, "img-1.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir(), "https://cdn.local", nil)
	require.NoError(t, err)

	failed := store.Delete(context.Background(), []string{"../../etc/passwd"})
	assert.Equal(t, []string{"../../etc/passwd"}, failed)
}
