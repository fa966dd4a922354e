// Package metrics expõe as decisões do rate limiter como métricas Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Metrics implementa o Recorder dos middlewares.
type Metrics struct {
	decisions   *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

// NewMetrics registra as métricas no registerer informado.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Total number of rate limit decisions",
			},
			[]string{"limiter", "operation", "outcome"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_store_errors_total",
				Help:      "Total number of counter store failures while deciding",
			},
			[]string{"limiter", "operation"},
		),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.storeErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveDecision(limiter, operation string, allowed bool) {
	outcome := OutcomeDenied
	if allowed {
		outcome = OutcomeAllowed
	}
	m.decisions.WithLabelValues(limiter, operation, outcome).Inc()
}

func (m *Metrics) ObserveStoreError(limiter, operation string) {
	m.storeErrors.WithLabelValues(limiter, operation).Inc()
}
