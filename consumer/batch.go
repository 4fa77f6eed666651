package consumer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cryptonote-go/cnwallet/node"
	"github.com/cryptonote-go/cnwallet/scan"
	"github.com/cryptonote-go/cnwallet/seenkeys"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// workItem is one transaction queued for preprocessing, tagged with the
// position it must be re-serialized at.
type workItem struct {
	blockInfo txtypes.TransactionBlockInfo
	tx        txtypes.TransactionReader
}

// preprocessed pairs a workItem's result with its sort key.
type preprocessed struct {
	blockInfo txtypes.TransactionBlockInfo
	tx        txtypes.TransactionReader
	info      txtypes.PreprocessInfo
}

// workerCount returns the fixed worker-goroutine pool size for one batch.
func workerCount() int {
	if n := runtime.GOMAXPROCS(0); n > 2 {
		return n
	}
	return 2
}

// runBatch fans work out across a fixed worker pool, running the
// preprocessor for every item, then returns the results in the order the
// workers finished them (not input order) along with the first error any
// worker observed (if any). It
// implements §4.6 stages 1 and 2; sorting and serial apply (stage 3) are the
// caller's responsibility.
func runBatch(ctx context.Context, items []workItem, subs []scan.SubscriptionView,
	n node.Node, registry *seenkeys.Registry, metrics Collector) ([]preprocessed, error) {

	workers := workerCount()
	metrics.SetWorkerPoolSize(workers)

	queue := make(chan workItem, 2*workers)
	done := make(chan struct{})
	var stop atomic.Bool

	var resultsMtx sync.Mutex
	var results []preprocessed
	var firstErr error

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range queue {
				if stop.Load() {
					continue
				}

				result, err := preprocessOne(ctx, item, subs, n, registry, metrics)
				if err != nil {
					resultsMtx.Lock()
					if firstErr == nil {
						firstErr = err
					}
					resultsMtx.Unlock()
					stop.Store(true)
					continue
				}

				resultsMtx.Lock()
				results = append(results, result)
				resultsMtx.Unlock()
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, item := range items {
			select {
			case queue <- item:
			case <-done:
				return
			}
			if stop.Load() {
				return
			}
		}
	}()

	wg.Wait()
	close(done)

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// preprocessOne runs the preprocessor for a single item, converting any
// panic raised by the transfer builder's invariant checks (see
// scan.errEphemeralKeyMismatch) into an ordinary error so one corrupted
// transaction cannot crash a worker goroutine.
func preprocessOne(ctx context.Context, item workItem, subs []scan.SubscriptionView,
	n node.Node, registry *seenkeys.Registry, metrics Collector) (result preprocessed, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer: preprocessing tx %s panicked: %v",
				item.tx.TransactionHash(), r)
		}
	}()

	info, err := scan.Preprocess(ctx, item.blockInfo, item.tx, subs, n, registry, metrics)
	if err != nil {
		return preprocessed{}, err
	}
	for spendKey, transfers := range info.Outputs {
		metrics.IncScanMatchedOutputs(spendKey.String(), len(transfers))
	}

	return preprocessed{blockInfo: item.blockInfo, tx: item.tx, info: info}, nil
}

// sortPreprocessed orders results by (height, transactionIndex) ascending,
// the total order in which they are applied to subscriptions regardless of
// worker scheduling.
func sortPreprocessed(results []preprocessed) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].blockInfo, results[j].blockInfo
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return a.TransactionIndex < b.TransactionIndex
	})
}
