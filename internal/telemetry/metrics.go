// Package telemetry holds the Prometheus metrics recorded by the mail service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mailservice"

	// OutcomeSent marks a message accepted by a transport.
	OutcomeSent = "sent"
	// OutcomeFailed marks a delivery failure.
	OutcomeFailed = "failed"
	// OutcomeRejected marks a request rejected before delivery.
	OutcomeRejected = "rejected"
)

// Metrics groups the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Sends          *prometheus.CounterVec
	Duplicates     prometheus.Counter
	Fallbacks      *prometheus.CounterVec
	TemplateMisses *prometheus.CounterVec
	SendDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the service metrics on reg. A nil
// registerer creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Sends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Total send attempts by transport and outcome",
			},
			[]string{"transport", "outcome"}, // outcome: sent, failed, rejected
		),
		Duplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_suppressed_total",
				Help:      "Total sends suppressed by the duplicate guard",
			},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "fallbacks_total",
				Help:      "Total transport selections that fell back to the log transport",
			},
			[]string{"requested", "reason"},
		),
		TemplateMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "templates",
				Name:      "misses_total",
				Help:      "Total template lookups that found nothing",
			},
			[]string{"template"},
		),
		SendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Transport delivery duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"transport"},
		),
	}
}

// ObserveSend records one delivery attempt.
func (m *Metrics) ObserveSend(transport, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(transport, outcome).Inc()
	if outcome != OutcomeRejected {
		m.SendDuration.WithLabelValues(transport).Observe(took.Seconds())
	}
}

// Rejected records a request that failed before reaching a transport.
func (m *Metrics) Rejected(transport string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(transport, OutcomeRejected).Inc()
}

// Duplicate records a suppressed send.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.Duplicates.Inc()
}

// Fallback records a transport selection that fell back.
func (m *Metrics) Fallback(requested, reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(requested, reason).Inc()
}

// TemplateMiss records a template that could not be found.
func (m *Metrics) TemplateMiss(name string) {
	if m == nil {
		return
	}
	m.TemplateMisses.WithLabelValues(name).Inc()
}
