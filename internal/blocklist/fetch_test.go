package blocklist

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	const body = "0.0.0.0 ads.example.com\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		io.WriteString(w, body)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	rc, etag, err := f.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, `"v1"`, etag)

	// Conditional round: unchanged content is reported, not re-downloaded.
	_, etag, err = f.Fetch(context.Background(), srv.URL, `"v1"`)
	assert.ErrorIs(t, err, ErrNotModified)
	assert.Equal(t, `"v1"`, etag)
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	_, _, err := f.Fetch(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(5 * time.Second)
	_, _, err := f.Fetch(ctx, srv.URL, "")
	assert.Error(t, err)
}
