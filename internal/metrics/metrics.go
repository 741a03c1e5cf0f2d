// ABOUTME: Prometheus counters for registration, challenge, and login outcomes
// ABOUTME: A nil *Metrics is valid and records nothing

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sigil"

// Outcome label values.
const (
	OutcomeOK               = "ok"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeExists           = "exists"
	OutcomeNotFound         = "not_found"
	OutcomeNoChallenge      = "no_challenge"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeRateLimited      = "rate_limited"
	OutcomeError            = "error"
)

// Metrics groups the service's collectors.
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	challenges    *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Principal registrations by outcome.",
		}, []string{"scheme", "outcome"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Challenges issued by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.registrations,
		m.challenges,
		m.logins,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterGauge exposes fn as a gauge, e.g. the number of outstanding challenges.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registration records a register or enroll outcome.
func (m *Metrics) Registration(scheme, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(scheme, outcome).Inc()
}

// Challenge records a challenge issuance outcome.
func (m *Metrics) Challenge(outcome string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(outcome).Inc()
}

// Login records a login outcome.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
