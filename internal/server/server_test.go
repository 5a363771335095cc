package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/wikichron/internal/storage/memory"
)

func seed(t *testing.T, blobs *memory.BlobStore, path, body string) {
	t.Helper()
	_, err := blobs.Put(context.Background(), path, "", strings.NewReader(body))
	require.NoError(t, err)
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	srv := New(memory.NewBlobStore(), nil)

	rec := doRequest(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsServed(t *testing.T) {
	srv := New(memory.NewBlobStore(), nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wikichron_")
}

func TestStatusReportsArtifacts(t *testing.T) {
	blobs := memory.NewBlobStore()
	seed(t, blobs, "page_titles.json", `{"total_pages":1}`)
	seed(t, blobs, "timeline.json", `{"total_events":0}`)
	srv := New(blobs, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Artifacts []struct {
			Name   string `json:"name"`
			Exists bool   `json:"exists"`
			Bytes  int64  `json:"bytes"`
		} `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	byName := map[string]bool{}
	for _, a := range payload.Artifacts {
		byName[a.Name] = a.Exists
	}
	assert.True(t, byName["page_titles"])
	assert.True(t, byName["timeline"])
	assert.False(t, byName["summary"])
	assert.False(t, byName["media_index"])
}

func TestTimelineEndpoint(t *testing.T) {
	blobs := memory.NewBlobStore()
	srv := New(blobs, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/timeline")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seed(t, blobs, "timeline.json", `{"total_events":2}`)
	rec = doRequest(t, srv, http.MethodGet, "/api/timeline")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"total_events":2`)
}

func TestSummaryEndpoint(t *testing.T) {
	blobs := memory.NewBlobStore()
	seed(t, blobs, "summary.md", "# A Summary\n")
	srv := New(blobs, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# A Summary")
}

func TestArtifactServing(t *testing.T) {
	blobs := memory.NewBlobStore()
	seed(t, blobs, "clean_text/Sonichu.txt", "Title: Sonichu\n")
	seed(t, blobs, "media/images/Sonichu_0_abc.png", "pngbytes")
	srv := New(blobs, nil)

	rec := doRequest(t, srv, http.MethodGet, "/artifacts/clean_text/Sonichu.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Title: Sonichu")

	rec = doRequest(t, srv, http.MethodGet, "/artifacts/media/images/Sonichu_0_abc.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = doRequest(t, srv, http.MethodGet, "/artifacts/no/such/thing.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/artifacts/../secret")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
