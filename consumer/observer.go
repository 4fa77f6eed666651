package consumer

import (
	"sync"

	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// Observer receives lifecycle notifications from a Consumer. Every method is
// invoked synchronously, from whichever goroutine is driving the consumer
// call that produced the event (the aggregation stage of OnNewBlocks, or the
// calling goroutine for everything else); an Observer must not call back
// into the Consumer that is notifying it, since the call that produced the
// event is still in progress.
type Observer interface {
	// OnBlocksAdded fires once per successful OnNewBlocks batch, before any
	// transaction in that batch is applied to a subscription.
	OnBlocksAdded(hashes []txtypes.Hash)

	// OnBlockchainDetach fires when the chain above height is rolled back.
	OnBlockchainDetach(height uint64)

	// OnTransactionUpdated fires once per transaction that was actually
	// recorded or transitioned by applyTransaction, naming every spend key
	// whose subscription now holds it.
	OnTransactionUpdated(txHash txtypes.Hash, spendKeys []cncrypto.PublicKey)

	// OnTransactionDeleteBegin and OnTransactionDeleteEnd bracket the
	// removal of an evicted pool transaction from every subscription.
	OnTransactionDeleteBegin(txHash txtypes.Hash)
	OnTransactionDeleteEnd(txHash txtypes.Hash)
}

// ObserverSet is a synchronous multi-observer broadcaster: every Subscribe'd
// Observer is called directly, in registration order, with no buffering.
// Mirrors the teacher's channelnotifier/peernotifier fan-out style.
type ObserverSet struct {
	mtx       sync.Mutex
	observers []Observer
}

// Subscribe registers o to receive future notifications.
func (s *ObserverSet) Subscribe(o Observer) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.observers = append(s.observers, o)
}

// Unsubscribe removes o, if registered. Comparison is by interface identity.
func (s *ObserverSet) Unsubscribe(o Observer) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *ObserverSet) snapshot() []Observer {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := make([]Observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func (s *ObserverSet) notifyBlocksAdded(hashes []txtypes.Hash) {
	for _, o := range s.snapshot() {
		o.OnBlocksAdded(hashes)
	}
}

func (s *ObserverSet) notifyBlockchainDetach(height uint64) {
	for _, o := range s.snapshot() {
		o.OnBlockchainDetach(height)
	}
}

func (s *ObserverSet) notifyTransactionUpdated(txHash txtypes.Hash, spendKeys []cncrypto.PublicKey) {
	for _, o := range s.snapshot() {
		o.OnTransactionUpdated(txHash, spendKeys)
	}
}

func (s *ObserverSet) notifyTransactionDeleteBegin(txHash txtypes.Hash) {
	for _, o := range s.snapshot() {
		o.OnTransactionDeleteBegin(txHash)
	}
}

func (s *ObserverSet) notifyTransactionDeleteEnd(txHash txtypes.Hash) {
	for _, o := range s.snapshot() {
		o.OnTransactionDeleteEnd(txHash)
	}
}
