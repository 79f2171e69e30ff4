package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the application lifecycle module.
type Metrics struct {
	TransitionsApplied *prometheus.CounterVec
	TransitionsRefused *prometheus.CounterVec
	TransitionDuration prometheus.Histogram
	ApplicationsOpened prometheus.Counter
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "licensure_transitions_applied_total",
			Help: "Total number of successful status transitions by target status",
		}, []string{"target"}),
		TransitionsRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "licensure_transitions_refused_total",
			Help: "Total number of refused status transitions by failure code",
		}, []string{"code"}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "licensure_transition_duration_seconds",
			Help:    "Duration of Transition operations (lifecycle critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ApplicationsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licensure_applications_opened_total",
			Help: "Total number of draft applications created",
		}),
	}
}

// ObserveTransition records the duration of a Transition operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
