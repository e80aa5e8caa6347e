package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGenerationMetrics(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.GenerationStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	m.RecordRetry()
	m.RecordRetry()
	m.GenerationFinished("ok", "flash", 3*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("ok", "flash")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("quota", "flash")))
}

func TestHTTPMetrics(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GenerationStarted()
		m.RecordRetry()
		m.GenerationFinished("system", "pro", time.Second)
		m.RecordHTTPRequest("POST", "/x", 500, time.Second)
		m.SetActiveSessions(3)
	})
}
