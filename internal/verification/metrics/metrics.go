package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification ledger.
type Metrics struct {
	ItemsVerified   *prometheus.CounterVec
	RepeatedVerifys prometheus.Counter
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		ItemsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "licensure_items_verified_total",
			Help: "Total number of items verified by kind",
		}, []string{"kind"}),
		RepeatedVerifys: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licensure_repeat_verifications_total",
			Help: "Total number of verify calls against already-verified items",
		}),
	}
}
