package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAPIRequest("matches", 200, 10*time.Millisecond)
	m.ObserveAPIRequest("matches", 200, 20*time.Millisecond)
	m.ObserveAPIRequest("users", 0, time.Millisecond)
	m.MatchCostComputed("bathbot", 3)
	m.PerformanceComputed("osu")
	m.ComputationFailed("matchcost")
	m.TokenRefreshed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("matches", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("users", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchCostRuns.WithLabelValues("bathbot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.performanceRuns.WithLabelValues("osu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.computationError.WithLabelValues("matchcost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenRefreshes))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("matches", 500, time.Second)
		m.TokenRefreshed()
		m.MatchCostComputed("osuplus", 1)
		m.PerformanceComputed("taiko")
		m.ComputationFailed("performance")
	})
}
