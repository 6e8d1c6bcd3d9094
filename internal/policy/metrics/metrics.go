package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	PoliciesCreated prometheus.Counter
	PoliciesDeleted prometheus.Counter
	CreateDuration  prometheus.Histogram
	GetDuration     prometheus.Histogram
	ListDuration    prometheus.Histogram
}

// New creates a Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "planlens_policies_created_total",
			Help: "Total number of policy analyses created",
		}),
		PoliciesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "planlens_policies_deleted_total",
			Help: "Total number of policy analyses deleted",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "planlens_policy_create_duration_seconds",
			Help:    "Duration of policy create operations (includes extraction for uploads)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		GetDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "planlens_policy_get_duration_seconds",
			Help:    "Duration of policy get operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "planlens_policy_list_duration_seconds",
			Help:    "Duration of policy list operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementPoliciesCreated records a successful create.
func (m *Metrics) IncrementPoliciesCreated() {
	m.PoliciesCreated.Inc()
}

// IncrementPoliciesDeleted records a successful delete.
func (m *Metrics) IncrementPoliciesDeleted() {
	m.PoliciesDeleted.Inc()
}

// ObserveCreate records the duration of a create operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveGet records the duration of a get operation.
func (m *Metrics) ObserveGet(start time.Time) {
	m.GetDuration.Observe(time.Since(start).Seconds())
}

// ObserveList records the duration of a list operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
