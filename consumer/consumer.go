// Package consumer implements the wallet-side transaction consumer: the
// facade that owns a set of per-account subscriptions sharing one view
// secret, fans block batches out across a worker pool for preprocessing,
// re-serializes the results deterministically, and applies the pool↔chain
// transaction state machine to each subscription.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/cnwlog"
	"github.com/cryptonote-go/cnwallet/node"
	"github.com/cryptonote-go/cnwallet/scan"
	"github.com/cryptonote-go/cnwallet/seenkeys"
	"github.com/cryptonote-go/cnwallet/subscription"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// ErrViewSecretMismatch is returned by AddSubscription when the account
// being added carries a different view secret than the one this consumer
// was constructed with; every subscription on a consumer must share one
// view-key family.
var ErrViewSecretMismatch = errors.New("consumer: view secret does not match this consumer's subscriptions")

// Config carries the optional collaborators a Consumer is built with beyond
// its mandatory Node and view secret.
type Config struct {
	// Metrics receives scan/batch/duplicate counters. Defaults to
	// NoopCollector if nil.
	Metrics Collector
}

type subEntry struct {
	sub  subscription.Subscription
	keys txtypes.AccountKeys
}

// Consumer is the wallet-side transaction consumer facade described in
// SPEC_FULL.md §6. It is safe for concurrent use from multiple goroutines,
// though the design assumes callers serialize their own batches.
type Consumer struct {
	node       node.Node
	viewSecret cncrypto.Scalar
	metrics    Collector
	registry   *seenkeys.Registry
	observers  ObserverSet

	mtx       sync.Mutex
	subs      map[cncrypto.PublicKey]*subEntry
	poolTxs   map[txtypes.Hash]struct{}
	syncStart txtypes.SynchronizationStart
}

// NewConsumer constructs a Consumer bound to a single view secret and
// backed by n for global-index lookups. It starts with no subscriptions and
// syncStart = MaxSynchronizationStart ("scan from the end of time").
func NewConsumer(cfg Config, n node.Node, viewSecret cncrypto.Scalar) *Consumer {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopCollector
	}

	return &Consumer{
		node:       n,
		viewSecret: viewSecret,
		metrics:    metrics,
		registry:   seenkeys.New(),
		subs:       make(map[cncrypto.PublicKey]*subEntry),
		poolTxs:    make(map[txtypes.Hash]struct{}),
		syncStart:  txtypes.MaxSynchronizationStart,
	}
}

// Subscribe registers o to receive future lifecycle notifications.
func (c *Consumer) Subscribe(o Observer) { c.observers.Subscribe(o) }

// Unsubscribe removes a previously registered observer.
func (c *Consumer) Unsubscribe(o Observer) { c.observers.Unsubscribe(o) }

// AddSubscription adds acct as a new subscription, or returns the existing
// one if its SpendPublicKey is already subscribed (idempotent). Rejects
// accounts whose ViewSecretKey does not match this consumer's.
func (c *Consumer) AddSubscription(acct txtypes.AccountSubscription) (subscription.Subscription, error) {
	if acct.Keys.ViewSecretKey != c.viewSecret {
		return nil, ErrViewSecretMismatch
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	spendKey := acct.Keys.Address.SpendPublicKey
	if existing, ok := c.subs[spendKey]; ok {
		return existing.sub, nil
	}

	sub := subscription.NewMemorySubscription(acct.Keys, acct.SyncStart)
	c.subs[spendKey] = &subEntry{sub: sub, keys: acct.Keys}
	c.syncStart = c.syncStart.Min(acct.SyncStart)

	return sub, nil
}

// RemoveSubscription removes the subscription for addr, if any, and
// recomputes syncStart from the remaining set. Returns true if no
// subscriptions remain afterward.
func (c *Consumer) RemoveSubscription(addr txtypes.AccountPublicAddress) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.subs, addr.SpendPublicKey)
	c.recomputeSyncStartLocked()
	return len(c.subs) == 0
}

func (c *Consumer) recomputeSyncStartLocked() {
	start := txtypes.MaxSynchronizationStart
	for _, entry := range c.subs {
		start = start.Min(entry.sub.GetSyncStart())
	}
	c.syncStart = start
}

// GetSubscription looks up the subscription for addr.
func (c *Consumer) GetSubscription(addr txtypes.AccountPublicAddress) (subscription.Subscription, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	entry, ok := c.subs[addr.SpendPublicKey]
	if !ok {
		return nil, false
	}
	return entry.sub, true
}

// GetSubscriptions enumerates the address of every current subscription.
func (c *Consumer) GetSubscriptions() []txtypes.AccountPublicAddress {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	out := make([]txtypes.AccountPublicAddress, 0, len(c.subs))
	for _, entry := range c.subs {
		out = append(out, entry.keys.Address)
	}
	return out
}

// GetSyncStart returns the current aggregate sync start across every
// subscription.
func (c *Consumer) GetSyncStart() txtypes.SynchronizationStart {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.syncStart
}

// InitTransactionPool re-seeds the known pool-transaction set from every
// subscription's own unconfirmed list, minus uncommitted (transactions the
// caller already knows are gone).
func (c *Consumer) InitTransactionPool(uncommitted map[txtypes.Hash]struct{}) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.poolTxs = make(map[txtypes.Hash]struct{})
	for _, entry := range c.subs {
		for _, txHash := range entry.sub.GetContainer().GetUnconfirmedTransactions() {
			if _, skip := uncommitted[txHash]; skip {
				continue
			}
			c.poolTxs[txHash] = struct{}{}
		}
	}
}

// GetKnownPoolTxIDs returns a snapshot of the currently known pool
// transaction hashes.
func (c *Consumer) GetKnownPoolTxIDs() map[txtypes.Hash]struct{} {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	out := make(map[txtypes.Hash]struct{}, len(c.poolTxs))
	for h := range c.poolTxs {
		out[h] = struct{}{}
	}
	return out
}

// AddPublicKeysSeen injects a previously-seen (txHash, outputKey) pair into
// the duplicate-key registry, used to recover state a host process had
// persisted itself.
func (c *Consumer) AddPublicKeysSeen(txHash txtypes.Hash, outputKey cncrypto.PublicKey) {
	c.registry.SeedKey(txHash, outputKey)
}

// MarkTransactionSafe fans a safety notification out to every subscription.
func (c *Consumer) MarkTransactionSafe(txHash txtypes.Hash) {
	c.mtx.Lock()
	subs := c.subsSnapshotLocked()
	c.mtx.Unlock()

	for _, entry := range subs {
		entry.sub.MarkTransactionSafe(txHash)
	}
}

// OnBlockchainDetach notifies observers and forwards the detach to every
// subscription. The consumer itself carries no per-height state to roll
// back.
func (c *Consumer) OnBlockchainDetach(height uint64) {
	c.observers.notifyBlockchainDetach(height)

	c.mtx.Lock()
	subs := c.subsSnapshotLocked()
	c.mtx.Unlock()

	for _, entry := range subs {
		entry.sub.OnBlockchainDetach(height)
	}
}

func (c *Consumer) subsSnapshotLocked() []*subEntry {
	out := make([]*subEntry, 0, len(c.subs))
	for _, entry := range c.subs {
		out = append(out, entry)
	}
	return out
}

func (c *Consumer) subscriptionViewsLocked() []scan.SubscriptionView {
	out := make([]scan.SubscriptionView, 0, len(c.subs))
	for _, entry := range c.subs {
		out = append(out, scan.SubscriptionView{Keys: entry.keys})
	}
	return out
}

// OnNewBlocks preprocesses a contiguous run of blocks starting at
// startHeight across a worker pool, then deterministically applies the
// results to every subscription in (height, txIndex) order. See
// SPEC_FULL.md §4.6. Returns false and the first worker error on failure;
// no partial results are committed in that case.
func (c *Consumer) OnNewBlocks(ctx context.Context, blocks []txtypes.CompleteBlock,
	startHeight uint64) (bool, error) {

	if len(blocks) == 0 {
		return true, nil
	}

	c.mtx.Lock()
	subs := c.subscriptionViewsLocked()
	syncStart := c.syncStart
	c.mtx.Unlock()

	items := make([]workItem, 0)
	for blockOffset, block := range blocks {
		if syncStart.Timestamp > 0 && block.Timestamp < syncStart.Timestamp {
			continue
		}

		height := startHeight + uint64(blockOffset)
		for txIdx, tx := range block.Transactions {
			if tx.TransactionPublicKey().IsZero() {
				continue
			}
			items = append(items, workItem{
				blockInfo: txtypes.TransactionBlockInfo{
					Height:           height,
					Timestamp:        block.Timestamp,
					TransactionIndex: uint32(txIdx),
				},
				tx: tx,
			})
		}
	}

	started := time.Now()
	results, err := runBatch(ctx, items, subs, c.node, c.registry, c.metrics)
	c.metrics.ObserveBatchDuration(time.Since(started))

	if err != nil {
		c.notifyAllError(err, startHeight)
		return false, err
	}

	sortPreprocessed(results)

	hashes := make([]txtypes.Hash, len(results))
	for i, r := range results {
		hashes[i] = r.tx.TransactionHash()
	}
	c.observers.notifyBlocksAdded(hashes)

	for _, r := range results {
		c.applyTransaction(r.blockInfo, r.tx, r.info)
	}

	c.mtx.Lock()
	subEntries := c.subsSnapshotLocked()
	c.mtx.Unlock()
	endHeight := startHeight + uint64(len(blocks)) - 1
	for _, entry := range subEntries {
		entry.sub.AdvanceHeight(endHeight)
	}

	return true, nil
}

func (c *Consumer) notifyAllError(err error, startHeight uint64) {
	c.mtx.Lock()
	subs := c.subsSnapshotLocked()
	c.mtx.Unlock()

	cnwlog.Log.Errorf("batch starting at %d failed: %v", startHeight, err)
	for _, entry := range subs {
		entry.sub.OnError(err, startHeight)
	}
}

// applyTransaction implements §4.8: for each subscription, record a newly
// seen transaction or perform the pool→chain transition for one it already
// knows as unconfirmed.
func (c *Consumer) applyTransaction(blockInfo txtypes.TransactionBlockInfo,
	tx txtypes.TransactionReader, info txtypes.PreprocessInfo) {

	c.mtx.Lock()
	entries := make([]*subEntry, 0, len(c.subs))
	for _, entry := range c.subs {
		entries = append(entries, entry)
	}
	c.mtx.Unlock()

	txHash := tx.TransactionHash()
	var updatedKeys []cncrypto.PublicKey

	for _, entry := range entries {
		transfers := info.Outputs[entry.keys.Address.SpendPublicKey]

		container := entry.sub.GetContainer()
		existing, known := container.GetTransactionInformation(txHash)

		switch {
		case known && existing.BlockInfo.Unconfirmed() && !blockInfo.Unconfirmed():
			entry.sub.MarkTransactionConfirmed(blockInfo, txHash, info.GlobalIdxs)
			updatedKeys = append(updatedKeys, entry.keys.Address.SpendPublicKey)

		case known:
			if existing.BlockInfo.Height != blockInfo.Height {
				panic(fmt.Sprintf("consumer: tx %s already confirmed at height %d, "+
					"now reported at height %d", txHash, existing.BlockInfo.Height,
					blockInfo.Height))
			}

		default:
			if entry.sub.AddTransaction(blockInfo, tx, transfers) {
				updatedKeys = append(updatedKeys, entry.keys.Address.SpendPublicKey)
			}
		}
	}

	if len(updatedKeys) > 0 {
		c.observers.notifyTransactionUpdated(txHash, updatedKeys)
	}
}

// OnPoolUpdated applies a mempool delta: newly observed transactions are
// preprocessed and applied at the unconfirmed sentinel height; evicted
// transactions are removed from every subscription. See SPEC_FULL.md §4.7.
func (c *Consumer) OnPoolUpdated(ctx context.Context, added, deleted []txtypes.TransactionReader) error {
	for _, tx := range added {
		if err := c.AddUnconfirmedTransaction(ctx, tx); err != nil {
			return err
		}
	}

	for _, tx := range deleted {
		c.RemoveUnconfirmedTransaction(tx.TransactionHash())
	}

	return nil
}

// AddUnconfirmedTransaction preprocesses and applies a single pool
// transaction. The transaction's hash is recorded in the known pool set
// even if preprocessing fails, matching the original wallet's recovery
// behavior (SPEC_FULL.md §7, §9): a failed add is not rolled back.
func (c *Consumer) AddUnconfirmedTransaction(ctx context.Context, tx txtypes.TransactionReader) error {
	txHash := tx.TransactionHash()

	c.mtx.Lock()
	c.poolTxs[txHash] = struct{}{}
	subs := c.subscriptionViewsLocked()
	c.mtx.Unlock()

	info, err := scan.Preprocess(ctx, txtypes.UnconfirmedBlockInfo, tx, subs, c.node, c.registry, c.metrics)
	if err != nil {
		c.notifyAllError(err, txtypes.UnconfirmedHeight)
		return err
	}

	c.applyTransaction(txtypes.UnconfirmedBlockInfo, tx, info)
	return nil
}

// RemoveUnconfirmedTransaction evicts txHash from the pool: it is removed
// from the known pool set and from every subscription's container.
func (c *Consumer) RemoveUnconfirmedTransaction(txHash txtypes.Hash) {
	c.observers.notifyTransactionDeleteBegin(txHash)

	c.mtx.Lock()
	delete(c.poolTxs, txHash)
	subs := c.subsSnapshotLocked()
	c.mtx.Unlock()

	for _, entry := range subs {
		entry.sub.DeleteUnconfirmedTransaction(txHash)
	}

	c.observers.notifyTransactionDeleteEnd(txHash)
}
