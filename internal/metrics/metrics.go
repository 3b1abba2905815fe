// Package metrics defines the Prometheus collectors exported on the admin listener.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "onboarding"

// Metrics holds the onboarding collectors.
type Metrics struct {
	Outcomes    *prometheus.CounterVec
	Allocations *prometheus.CounterVec
	ShardLoad   *prometheus.GaugeVec
	AlertErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Onboarding requests by outcome.",
		}, []string{"outcome"}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_allocations_total",
			Help:      "Workspaces allocated per shard.",
		}, []string{"shard"}),
		ShardLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shard_load",
			Help:      "Workspaces assigned per shard at the last scan.",
		}, []string{"shard"}),
		AlertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_errors_total",
			Help:      "Oversubscription alerts that could not be sent.",
		}),
	}

	reg.MustRegister(m.Outcomes, m.Allocations, m.ShardLoad, m.AlertErrors)
	return m
}

// ObserveOutcome counts a finished request.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// ObserveLoad records the load of a scanned shard.
func (m *Metrics) ObserveLoad(shard, count int) {
	if m == nil {
		return
	}
	m.ShardLoad.WithLabelValues(strconv.Itoa(shard)).Set(float64(count))
}

// ObserveAllocation counts a workspace allocated to shard.
func (m *Metrics) ObserveAllocation(shard int) {
	if m == nil {
		return
	}
	m.Allocations.WithLabelValues(strconv.Itoa(shard)).Inc()
}

// ObserveAlertError counts an alert that failed to send.
func (m *Metrics) ObserveAlertError() {
	if m == nil {
		return
	}
	m.AlertErrors.Inc()
}
