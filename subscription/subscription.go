package subscription

import (
	"sync"

	"github.com/cryptonote-go/cnwallet/cnwlog"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// MemorySubscription is the reference Subscription implementation backing
// a MemoryContainer. Every exported method on Subscription is implemented
// here in terms of that container plus a small amount of bookkeeping
// (sync height, safe-marked set).
type MemorySubscription struct {
	keys      txtypes.AccountKeys
	syncStart txtypes.SynchronizationStart
	container *MemoryContainer

	mtx sync.Mutex
	// The following fields are protected by mtx.
	height int64
	safe   map[txtypes.Hash]struct{}
}

// NewMemorySubscription constructs a reference subscription for the given
// account, starting scanning from syncStart.
func NewMemorySubscription(keys txtypes.AccountKeys,
	syncStart txtypes.SynchronizationStart) *MemorySubscription {

	return &MemorySubscription{
		keys:      keys,
		syncStart: syncStart,
		container: NewMemoryContainer(),
		height:    -1,
		safe:      make(map[txtypes.Hash]struct{}),
	}
}

// GetSyncStart implements Subscription.
func (s *MemorySubscription) GetSyncStart() txtypes.SynchronizationStart {
	return s.syncStart
}

// GetContainer implements Subscription.
func (s *MemorySubscription) GetContainer() Container {
	return s.container
}

// MemoryContainerRef returns the concrete *MemoryContainer backing this
// subscription, for tests and tools that want the extra helpers
// (Balance, MarkSpent) beyond the Container interface.
func (s *MemorySubscription) MemoryContainerRef() *MemoryContainer {
	return s.container
}

// GetKeys implements Subscription.
func (s *MemorySubscription) GetKeys() txtypes.AccountKeys {
	return s.keys
}

// GetAddress implements Subscription.
func (s *MemorySubscription) GetAddress() txtypes.AccountPublicAddress {
	return s.keys.Address
}

// OnBlockchainDetach implements Subscription.
func (s *MemorySubscription) OnBlockchainDetach(height uint64) {
	cnwlog.SubLog.Debugf("subscription %s detaching to height %d",
		s.keys.Address.SpendPublicKey, height)
}

// OnError implements Subscription.
func (s *MemorySubscription) OnError(err error, startHeight uint64) {
	cnwlog.SubLog.Errorf("subscription %s: batch starting at %d failed: %v",
		s.keys.Address.SpendPublicKey, startHeight, err)
}

// AddTransaction implements Subscription.
func (s *MemorySubscription) AddTransaction(blockInfo txtypes.TransactionBlockInfo,
	tx txtypes.TransactionReader, transfers []txtypes.TransferInfo) bool {

	return s.container.AddTransaction(blockInfo, tx, transfers)
}

// MarkTransactionConfirmed implements Subscription.
func (s *MemorySubscription) MarkTransactionConfirmed(blockInfo txtypes.TransactionBlockInfo,
	txHash txtypes.Hash, globalIdxs []uint32) {

	s.container.MarkTransactionConfirmed(blockInfo, txHash, globalIdxs)
}

// MarkTransactionSafe implements Subscription.
func (s *MemorySubscription) MarkTransactionSafe(txHash txtypes.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.safe[txHash] = struct{}{}
}

// IsMarkedSafe reports whether MarkTransactionSafe was ever called for
// txHash, for tests.
func (s *MemorySubscription) IsMarkedSafe(txHash txtypes.Hash) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.safe[txHash]
	return ok
}

// DeleteUnconfirmedTransaction implements Subscription.
func (s *MemorySubscription) DeleteUnconfirmedTransaction(txHash txtypes.Hash) {
	s.container.DeleteUnconfirmedTransaction(txHash)
}

// AdvanceHeight implements Subscription.
func (s *MemorySubscription) AdvanceHeight(height uint64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.height = int64(height)
}

// Height returns the last height AdvanceHeight was called with, or -1 if
// never called, for tests.
func (s *MemorySubscription) Height() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.height
}
