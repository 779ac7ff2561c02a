package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransactionMetrics records outcomes and timings for ledger operations.
// All methods are nil-safe so callers can skip registration in tests.
type TransactionMetrics struct {
	duration      *prometheus.HistogramVec
	completed     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	lockRetries   *prometheus.CounterVec
	lockExhausted *prometheus.CounterVec
}

// NewTransactionMetrics registers the transaction metrics on the provided registerer.
func NewTransactionMetrics(reg prometheus.Registerer) *TransactionMetrics {
	if reg == nil {
		return &TransactionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transaction_duration_seconds",
		Help:    "Duration of ledger transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_completed",
		Help: "Completed ledger transactions.",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_failed",
		Help: "Failed ledger transactions.",
	}, []string{"type", "reason"})
	lockRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_lock_retries",
		Help: "Wallet lock acquisition retries.",
	}, []string{"scope"})
	lockExhausted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_lock_exhausted",
		Help: "Wallet lock acquisitions that gave up after retrying.",
	}, []string{"scope"})
	reg.MustRegister(duration, completed, failed, lockRetries, lockExhausted)
	return &TransactionMetrics{
		duration:      duration,
		completed:     completed,
		failed:        failed,
		lockRetries:   lockRetries,
		lockExhausted: lockExhausted,
	}
}

// ObserveDuration records the duration for the given transaction type.
func (m *TransactionMetrics) ObserveDuration(txType string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(txType)).Observe(d.Seconds())
}

// IncCompleted increments the completion counter for the given type.
func (m *TransactionMetrics) IncCompleted(txType string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(txType)).Inc()
}

// IncFailed increments the failure counter for the given type and reason.
func (m *TransactionMetrics) IncFailed(txType, reason string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(txType), normalizeLabel(reason)).Inc()
}

// IncLockRetry increments the lock retry counter for the given scope.
func (m *TransactionMetrics) IncLockRetry(scope string) {
	if m == nil || m.lockRetries == nil {
		return
	}
	m.lockRetries.WithLabelValues(normalizeLabel(scope)).Inc()
}

// IncLockExhausted increments the exhausted counter for the given scope.
func (m *TransactionMetrics) IncLockExhausted(scope string) {
	if m == nil || m.lockExhausted == nil {
		return
	}
	m.lockExhausted.WithLabelValues(normalizeLabel(scope)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
