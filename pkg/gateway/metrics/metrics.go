// Package metrics exposes the Prometheus collectors the relay records into.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aura_relay"

// Turn outcomes recorded against TurnsTotal and TurnDuration.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeDisconnected = "disconnected"
)

// Metrics holds the relay's collectors. Construct with New against the
// registry the scrape endpoint serves, or with NewNop where nothing scrapes.
type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	TurnsTotal     *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	AudioChunks    prometheus.Counter
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live relay sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions accepted",
		}),
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of conversation turns",
			},
			[]string{"outcome"}, // outcome: ok, error, disconnected
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of conversation turns in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		AudioChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of audio chunks relayed to clients",
		}),
	}
	reg.MustRegister(m.SessionsActive, m.SessionsTotal, m.TurnsTotal, m.TurnDuration, m.AudioChunks)
	return m
}

// NewNop returns collectors backed by a private registry. Records are
// accepted and discarded, so callers never need a nil check.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveTurn records one finished conversation turn.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
