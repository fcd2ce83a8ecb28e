// Package metrics exposes the concierge lifecycle as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Transitions  *prometheus.CounterVec
	MessagesSent *prometheus.CounterVec
	SendDuration prometheus.Histogram
	Jobs         *prometheus.CounterVec
	JobDuration  prometheus.Histogram
}

// New registers the concierge collectors, plus the Go and process
// collectors, on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_transitions_total",
				Help: "Inbound messages handled, by stage before and after.",
			},
			[]string{"from", "to"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_messages_sent_total",
				Help: "Outbound gateway calls by result.",
			},
			[]string{"result"},
		),
		SendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "concierge_send_duration_seconds",
				Help:    "Duration of outbound gateway calls.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_jobs_total",
				Help: "Scheduled jobs by status transition.",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "concierge_job_dispatch_duration_seconds",
				Help:    "Time spent dispatching a fired job to all recipients.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	m.registry.MustRegister(
		m.Transitions,
		m.MessagesSent,
		m.SendDuration,
		m.Jobs,
		m.JobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnSend: func(ctx context.Context, e *domain.SendEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.MessagesSent.WithLabelValues(result).Inc()
			m.SendDuration.Observe(e.Duration.Seconds())
		},
		OnJob: func(ctx context.Context, e *domain.JobEvent) {
			m.Jobs.WithLabelValues(string(e.Status)).Inc()
			if e.Status == domain.JobFired || e.Status == domain.JobFailed {
				m.JobDuration.Observe(e.Duration.Seconds())
			}
		},
	}
}
