package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	posted    *prometheus.CounterVec
	taken     *prometheus.CounterVec
	malformed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		posted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docexchange_notification_posted_total",
			Help: "Notification slot writes by channel kind",
		}, []string{"kind"}),
		taken: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docexchange_notification_taken_total",
			Help: "Notification slot reads by channel kind and outcome",
		}, []string{"kind", "outcome"}),
		malformed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docexchange_notification_malformed_total",
			Help: "Discarded undecodable notification payloads by channel kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) incPosted(kind Kind) {
	if m == nil {
		return
	}
	m.posted.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) incTaken(kind Kind, outcome string) {
	if m == nil {
		return
	}
	m.taken.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) incMalformed(kind Kind) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(string(kind)).Inc()
}
