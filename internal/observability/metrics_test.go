package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test")

	m.IngestFinished("committed")
	m.IngestFinished("committed")
	m.IngestFinished("TranscodeError")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.StagingSwept(3)
	m.StagingSwept(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("TranscodeError")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweptDirs))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IngestFinished("committed")
		m.ObserveStage("transcoding", time.Second)
		m.ObserveTranscode(time.Second)
		m.ObserveQuery(time.Millisecond)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.CacheLookup(true)
		m.StagingSwept(1)
		m.RegisterGaugeFunc("x", "x", func() float64 { return 0 })
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("1.2.3")
	m.RegisterGaugeFunc("transcode_slots_in_use", "Held transcode slots", func() float64 { return 2 })
	m.ObserveHTTP("GET", "/api/v1/videos", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `streamline_build_info{version="1.2.3"} 1`)
	assert.Contains(t, string(body), "streamline_transcode_slots_in_use 2")
	assert.Contains(t, string(body), `streamline_http_requests_total{method="GET",route="/api/v1/videos",status="200"} 1`)
}
