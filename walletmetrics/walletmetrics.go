// Package walletmetrics implements the consumer.Collector contract with
// Prometheus instrumentation, grounded on the teacher's monitoring package
// and its github.com/prometheus/client_golang dependency.
package walletmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the Prometheus-backed implementation of consumer.Collector.
// It satisfies that interface structurally; this package does not import
// the consumer package, so the core pipeline never needs to import
// Prometheus.
type Metrics struct {
	scanTransactions   prometheus.Counter
	scanMatchedOutputs *prometheus.CounterVec
	duplicateRejected  prometheus.Counter
	batchDuration      prometheus.Histogram
	workerPoolSize     prometheus.Gauge
}

// New constructs a Metrics instance. Call Register before any subsystem
// uses it so collection does not silently no-op.
func New() *Metrics {
	return &Metrics{
		scanTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnwallet_scan_transactions_total",
			Help: "Total number of transactions fed through the preprocessor.",
		}),
		scanMatchedOutputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cnwallet_scan_matched_outputs_total",
			Help: "Total number of outputs matched as owned, per subscription.",
		}, []string{"spend_key"}),
		duplicateRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnwallet_duplicate_keys_rejected_total",
			Help: "Total number of transactions dropped for reusing an already-credited output key.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cnwallet_batch_duration_seconds",
			Help:    "Wall-clock duration of one OnNewBlocks batch.",
			Buckets: prometheus.DefBuckets,
		}),
		workerPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cnwallet_worker_pool_size",
			Help: "Worker goroutine count used by the most recent batch.",
		}),
	}
}

// Register adds every collector in m to registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		m.scanTransactions,
		m.scanMatchedOutputs,
		m.duplicateRejected,
		m.batchDuration,
		m.workerPoolSize,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncScanTransactions implements consumer.Collector.
func (m *Metrics) IncScanTransactions(n int) {
	m.scanTransactions.Add(float64(n))
}

// IncScanMatchedOutputs implements consumer.Collector.
func (m *Metrics) IncScanMatchedOutputs(spendKeyHex string, n int) {
	m.scanMatchedOutputs.WithLabelValues(spendKeyHex).Add(float64(n))
}

// IncDuplicateKeysRejected implements consumer.Collector and
// scan.Counter.
func (m *Metrics) IncDuplicateKeysRejected() {
	m.duplicateRejected.Inc()
}

// ObserveBatchDuration implements consumer.Collector.
func (m *Metrics) ObserveBatchDuration(d time.Duration) {
	m.batchDuration.Observe(d.Seconds())
}

// SetWorkerPoolSize implements consumer.Collector.
func (m *Metrics) SetWorkerPoolSize(n int) {
	m.workerPoolSize.Set(float64(n))
}
