package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request lifecycle.
// Tracks creations, transitions by target status and deletions.
type Metrics struct {
	Created           prometheus.Counter
	Transitions       *prometheus.CounterVec
	Deleted           prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New registers the request metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_requests_created_total",
			Help: "Total number of document requests created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docexchange_request_transitions_total",
			Help: "Status transitions by outcome and target status",
		}, []string{"to", "outcome"}),
		Deleted: f.NewCounter(prometheus.CounterOpts{
			Name: "docexchange_requests_deleted_total",
			Help: "Document requests that existed when deleted",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docexchange_request_operation_duration_seconds",
			Help:    "Duration of request service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementCreated records a successful creation.
func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.Created.Inc()
}

// IncrementTransition records a transition attempt. outcome is "ok" or "rejected".
func (m *Metrics) IncrementTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to, outcome).Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.Deleted.Inc()
}

// ObserveOperation records how long op took.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
