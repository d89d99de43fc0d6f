// Package metrics wires the controller's prometheus collectors. A
// private registry keeps the scrape surface limited to what this process
// registers deliberately.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

const namespace = "facegate"

// Metrics bundles every collector the controller emits.
type Metrics struct {
	registry *prometheus.Registry

	credentialsReceived *prometheus.CounterVec
	sessions            *prometheus.CounterVec
	sessionDuration     prometheus.Histogram
	framesObserved      prometheus.Counter
	unknownCaptures     prometheus.Counter
}

// New builds the collector set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		credentialsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_received_total",
			Help:      "Credentials delivered by readers, by field decodability.",
		}, []string{"decoded"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Completed sessions by terminal outcome.",
		}, []string{"outcome"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Credential arrival to terminal outcome.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 15, 20},
		}),
		framesObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_observed_total",
			Help:      "Camera frames fed to the face voter.",
		}),
		unknownCaptures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_captures_total",
			Help:      "Frames of unrecognized subjects persisted to disk.",
		}),
	}

	reg.MustRegister(
		m.credentialsReceived,
		m.sessions,
		m.sessionDuration,
		m.framesObserved,
		m.unknownCaptures,
	)
	return m
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CredentialReceived(decoded bool) {
	label := "false"
	if decoded {
		label = "true"
	}
	m.credentialsReceived.WithLabelValues(label).Inc()
}

func (m *Metrics) SessionClosed(outcome types.Outcome, elapsed time.Duration) {
	m.sessions.WithLabelValues(string(outcome)).Inc()
	m.sessionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) FrameObserved()   { m.framesObserved.Inc() }
func (m *Metrics) UnknownCaptured() { m.unknownCaptures.Inc() }
