package consumer

import "time"

// Collector is the subset of the walletmetrics registry the consumer and
// batch pipeline call into. It exists so this package never imports
// Prometheus directly, mirroring the teacher's habit of threading a logger
// interface rather than a concrete logger into most of its packages.
type Collector interface {
	IncScanTransactions(n int)
	IncScanMatchedOutputs(spendKeyHex string, n int)
	IncDuplicateKeysRejected()
	ObserveBatchDuration(d time.Duration)
	SetWorkerPoolSize(n int)
}

type noopCollector struct{}

func (noopCollector) IncScanTransactions(int)             {}
func (noopCollector) IncScanMatchedOutputs(string, int)   {}
func (noopCollector) IncDuplicateKeysRejected()           {}
func (noopCollector) ObserveBatchDuration(time.Duration)  {}
func (noopCollector) SetWorkerPoolSize(int)               {}

// NoopCollector discards every metric, used when a host does not configure
// one.
var NoopCollector Collector = noopCollector{}
