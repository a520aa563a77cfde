package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected      prometheus.Counter
	CheckFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_ratelimit_rejected_total",
			Help: "Share route requests rejected by the per-IP limit",
		}),
		CheckFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_ratelimit_check_failures_total",
			Help: "Limiter errors; the request was let through",
		}),
	}
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) IncrementCheckFailures() {
	if m == nil {
		return
	}
	m.CheckFailures.Inc()
}
