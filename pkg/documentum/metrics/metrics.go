// Package metrics provides a Prometheus documentum.Observer.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/documentum/pkg/documentum"
)

// Metrics holds the service operation metrics.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ConflictsTotal    *prometheus.CounterVec
	LockTimeoutsTotal prometheus.Counter
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documentum_operations_total",
				Help: "Total number of service operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "documentum_operation_duration_seconds",
				Help:    "Duration of service operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documentum_conflicts_total",
				Help: "Total number of retryable conflicts returned",
			},
			[]string{"operation"},
		),
		LockTimeoutsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "documentum_lock_timeouts_total",
				Help: "Total number of lock waits that exceeded the lock timeout",
			},
		),
	}
}

// ObserveOperation implements documentum.Observer.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(op, documentum.Kind(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if documentum.IsRetryable(err) {
		m.ConflictsTotal.WithLabelValues(op).Inc()
		if errors.Is(err, documentum.ErrLockTimeout) {
			m.LockTimeoutsTotal.Inc()
		}
	}
}
