package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	got, err := NewHTTPDownloader().Fetch(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got.Bytes)
	assert.Equal(t, "image/png", got.ContentType)
}

func TestFetchAccessDenied(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTPDownloader().Fetch(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrAccessDenied, "status %d", status)
		server.Close()
	}
}

func TestFetchOtherStatusesFail(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTPDownloader().Fetch(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrDownloadFailed, "status %d", status)
		assert.NotErrorIs(t, err, ErrAccessDenied, "status %d", status)
		server.Close()
	}
}

func TestFetchRejectsNonWebURL(t *testing.T) {
	_, err := NewHTTPDownloader().Fetch(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestFetchBodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	_, err := NewHTTPDownloader(WithMaxBytes(1024)).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrDownloadFailed)
}
