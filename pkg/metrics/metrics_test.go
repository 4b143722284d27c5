package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewIsolated()

	m.Extracted("threads", "picture-elements")
	m.Extracted("threads", "picture-elements")
	m.StrategyFailed("facebook", "photo-viewer")
	m.Downloaded("instagram", OutcomeSucceeded)
	m.Retried()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImagesExtracted.WithLabelValues("threads", "picture-elements")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyFailures.WithLabelValues("facebook", "photo-viewer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("instagram", OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadRetries))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Extracted("threads", "x")
		m.Excluded("threads", "avatar")
		m.ObserveExtraction("threads", 1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewIsolated()
	m.Excluded("threads", "comment")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `socialsnap_images_excluded_total{platform="threads",reason="comment"} 1`)
}
