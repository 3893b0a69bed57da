// Package metrics provides Prometheus metrics for the pressroom service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	MilestoneSaves  *prometheus.CounterVec
	CostEntries     prometheus.Counter
	CostRecorded    prometheus.Counter
	ProjectsActive  prometheus.Gauge
	ErrorsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_requests_total",
				Help: "Total number of API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pressroom_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		MilestoneSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_milestone_saves_total",
				Help: "Total milestone saves by milestone type.",
			},
			[]string{"type"},
		),
		CostEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pressroom_cost_entries_total",
				Help: "Total cost ledger entries appended.",
			},
		),
		CostRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pressroom_cost_recorded_dollars_total",
				Help: "Total cost recorded in the ledger, in dollars.",
			},
		),
		ProjectsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pressroom_projects_active",
				Help: "Number of active projects at last listing.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.MilestoneSaves)
	reg.MustRegister(m.CostEntries)
	reg.MustRegister(m.CostRecorded)
	reg.MustRegister(m.ProjectsActive)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveDuration records request duration.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordMilestoneSave increments the milestone save counter.
func (m *Metrics) RecordMilestoneSave(milestoneType string) {
	m.MilestoneSaves.WithLabelValues(milestoneType).Inc()
}

// RecordCost counts one appended ledger entry and its dollar cost.
func (m *Metrics) RecordCost(cost float64) {
	m.CostEntries.Inc()
	m.CostRecorded.Add(cost)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
