package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/wikichron/internal/pipeline"
)

func newTestFetcher() *CollyFetcher {
	return NewCollyFetcher(FetcherConfig{
		UserAgent: "wikichron-test",
		Timeout:   5 * time.Second,
	}, nil)
}

func TestCollyFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wikichron-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><h1>ok</h1></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/cwcki/Page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "<h1>ok</h1>")
	assert.Equal(t, srv.URL+"/cwcki/Page", page.URL)
}

func TestCollyFetcherHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, pipeline.RetryableHTTP(err), "503 should be classified retryable")

	var pe *pipeline.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusServiceUnavailable, pe.Status)
}

func TestCollyFetcherNotFoundNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, pipeline.RetryableHTTP(err))
}

func TestCollyFetcherConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, pipeline.RetryableHTTP(err), "connection errors are transient")
}

func TestCollyFetcherRevisitsSameURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits, "retries must be able to re-request the same URL")
}
