// Package metrics exposes plugin and action counters in the Prometheus
// format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scuffcommander/pkg/plugin"
)

// Metrics implements plugin.Observer and action.Observer.
type Metrics struct {
	registry     *prometheus.Registry
	connects     *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
	evalDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scuffcommander_plugin_connects_total",
				Help: "Connection attempts per plugin and result",
			},
			[]string{"plugin", "result"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scuffcommander_plugin_dispatches_total",
				Help: "Plugin commands and queries per plugin, operation and result",
			},
			[]string{"plugin", "op", "result"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scuffcommander_action_evaluations_total",
				Help: "Action evaluations per action and result",
			},
			[]string{"action", "result"},
		),
		evalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scuffcommander_action_duration_seconds",
				Help:    "Time taken by an action evaluation",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"action"},
		),
	}
	m.registry.MustRegister(
		m.connects, m.dispatches, m.evaluations, m.evalDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ConnectAttempt(t plugin.Type, err error) {
	m.connects.WithLabelValues(string(t), result(err)).Inc()
}

func (m *Metrics) Dispatched(t plugin.Type, op string, err error) {
	m.dispatches.WithLabelValues(string(t), op, result(err)).Inc()
}

func (m *Metrics) Evaluated(id string, took time.Duration, err error) {
	m.evaluations.WithLabelValues(id, result(err)).Inc()
	m.evalDuration.WithLabelValues(id).Observe(took.Seconds())
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
