// Package telemetry exposes Prometheus metrics for the agent loop and its
// surrounding services.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the service registry and the agent's instruments. A nil
// *Telemetry is valid and records nothing, so wiring stays optional in tests.
type Telemetry struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	stepsTotal      *prometheus.CounterVec
	plannerRequests *prometheus.CounterVec
	toolInvocations *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	ingestEvents    *prometheus.CounterVec
}

// New builds a Telemetry with its own registry, including the Go runtime and
// process collectors.
func New() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analyst",
			Name:      "sessions_created_total",
			Help:      "Number of agent sessions created.",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyst",
			Name:      "steps_total",
			Help:      "Agent steps by terminal status.",
		}, []string{"status"}),
		plannerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyst",
			Name:      "planner_requests_total",
			Help:      "Planning decisions by source.",
		}, []string{"source"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyst",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "analyst",
			Name:      "tool_duration_seconds",
			Help:      "Wall-clock duration of tool invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		ingestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyst",
			Name:      "ingest_events_total",
			Help:      "Stream events processed by outcome.",
		}, []string{"outcome"}),
	}

	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.sessionsCreated,
		t.stepsTotal,
		t.plannerRequests,
		t.toolInvocations,
		t.toolDuration,
		t.ingestEvents,
	)
	return t
}

// Handler serves the registry in Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) SessionCreated() {
	if t == nil {
		return
	}
	t.sessionsCreated.Inc()
}

func (t *Telemetry) StepCompleted(status string) {
	if t == nil {
		return
	}
	t.stepsTotal.WithLabelValues(status).Inc()
}

func (t *Telemetry) PlannerDecision(source string) {
	if t == nil {
		return
	}
	t.plannerRequests.WithLabelValues(source).Inc()
}

func (t *Telemetry) ToolInvoked(tool, outcome string, seconds float64) {
	if t == nil {
		return
	}
	t.toolInvocations.WithLabelValues(tool, outcome).Inc()
	t.toolDuration.WithLabelValues(tool).Observe(seconds)
}

func (t *Telemetry) IngestEvent(outcome string) {
	if t == nil {
		return
	}
	t.ingestEvents.WithLabelValues(outcome).Inc()
}
