package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		ObservePageDiscovered()
		ObservePageScraped("ok")
		ObserveFetch(200, 120*time.Millisecond)
		ObserveImage("downloaded")
		ObserveModelInvocation("ok")
		ObserveBatch("failed")
		ObserveRetry("fetch")
		ObservePhase("discover", time.Minute)
		ObserveCheckpointSave("discovery_checkpoint")
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	ObservePageDiscovered()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wikichron_pages_discovered_total")
}
