package sharelink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks share-link issuance and resolution outcomes.
type Metrics struct {
	Generated prometheus.Counter
	Resolved  *prometheus.CounterVec
	Removed   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_share_links_generated_total",
			Help: "Share links issued",
		}),
		Resolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docexchange_share_links_resolved_total",
			Help: "Share link resolutions by outcome (ok, not_found, expired)",
		}, []string{"outcome"}),
		Removed: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_share_links_removed_total",
			Help: "Expired share links removed by the cleanup loop",
		}),
	}
}

func (m *Metrics) incGenerated() {
	if m != nil {
		m.Generated.Inc()
	}
}

func (m *Metrics) incResolved(outcome string) {
	if m != nil {
		m.Resolved.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) addRemoved(n int) {
	if m != nil && n > 0 {
		m.Removed.Add(float64(n))
	}
}
