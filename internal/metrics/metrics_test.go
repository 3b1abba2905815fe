package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome("onboarded")
	m.ObserveOutcome("onboarded")
	m.ObserveLoad(1, 4)
	m.ObserveAllocation(1)
	m.ObserveAlertError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("onboarded")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ShardLoad.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Allocations.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertErrors))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome("x")
		m.ObserveLoad(0, 1)
		m.ObserveAllocation(0)
		m.ObserveAlertError()
	})
}
