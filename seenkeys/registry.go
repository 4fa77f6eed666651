// Package seenkeys implements the wallet's process-wide duplicate
// stealth-address defense. The original CryptoNote wallet kept this state
// as a global; this module instead keeps it as a value owned by a single
// Consumer and threaded explicitly into the transfer builder, so that
// multiple consumers (e.g. under test) never share state by accident.
package seenkeys

import (
	"sync"

	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// Registry is the append-only, mutex-guarded record of every transaction
// hash and output key this process has ever credited to one of its
// subscriptions. The following fields are protected by mtx.
type Registry struct {
	mtx sync.Mutex

	transactionsHashSeen map[txtypes.Hash]struct{}
	publicKeysSeen       map[cncrypto.PublicKey]txtypes.Hash
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		transactionsHashSeen: make(map[txtypes.Hash]struct{}),
		publicKeysSeen:        make(map[cncrypto.PublicKey]txtypes.Hash),
	}
}

// Session is a single transfer-builder call's view into the registry: a
// staging area plus a reference to the committed state it was checked
// against. Begin locks the registry's mutex; the caller MUST call either
// Commit or Abort exactly once to release it, matching the spec's
// requirement that the read-then-insert be atomic relative to concurrent
// builders.
type Session struct {
	r       *Registry
	txHash  txtypes.Hash
	known   bool
	temp    map[cncrypto.PublicKey]struct{}
	dropped bool
}

// Begin starts a duplicate-key check-then-insert session for txHash,
// holding the registry's mutex until Commit or Abort is called.
func (r *Registry) Begin(txHash txtypes.Hash) *Session {
	r.mtx.Lock()

	_, known := r.transactionsHashSeen[txHash]
	return &Session{
		r:      r,
		txHash: txHash,
		known:  known,
		temp:   make(map[cncrypto.PublicKey]struct{}),
	}
}

// AlreadyProcessed reports whether this transaction hash was already
// committed by a prior session (e.g. seen in an earlier batch, or via
// SeedKey). Implementations may use this to skip re-running the duplicate
// check for transactions reprocessed across pool/chain transitions.
func (s *Session) AlreadyProcessed() bool {
	return s.known
}

// Stage records that outputKey is about to be emitted for the session's
// transaction. It returns the transaction hash that already owns this key
// if staging would create a duplicate (either against previously committed
// state, or against another key staged earlier in this same session); in
// that case the caller must drop the whole transaction's transfers and call
// Abort.
func (s *Session) Stage(outputKey cncrypto.PublicKey) (dupTxHash txtypes.Hash, dup bool) {
	if !s.known {
		if owner, ok := s.r.publicKeysSeen[outputKey]; ok && owner != s.txHash {
			return owner, true
		}
		if _, ok := s.temp[outputKey]; ok {
			return s.txHash, true
		}
	}
	s.temp[outputKey] = struct{}{}
	return txtypes.Hash{}, false
}

// Commit merges the staged keys into the registry and releases the mutex
// Begin acquired. Safe to call even if nothing was staged (an empty-but-
// successful transaction still marks its hash seen).
func (s *Session) Commit() {
	defer s.r.mtx.Unlock()

	s.r.transactionsHashSeen[s.txHash] = struct{}{}
	for k := range s.temp {
		s.r.publicKeysSeen[k] = s.txHash
	}
}

// Abort releases the mutex Begin acquired without committing anything
// staged in this session. Used on the duplicate-key soft-failure path.
func (s *Session) Abort() {
	s.r.mtx.Unlock()
}

// SeedKey injects a previously-seen (txHash, outputKey) pair into the
// registry, used by a host process to recover state it had persisted
// itself (the AddPublicKeysSeen operation in the consumer-facing API).
func (r *Registry) SeedKey(txHash txtypes.Hash, outputKey cncrypto.PublicKey) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.transactionsHashSeen[txHash] = struct{}{}
	r.publicKeysSeen[outputKey] = txHash
}

// KnownTransactionHashes returns the number of distinct transaction hashes
// committed to the registry, for metrics/diagnostics.
func (r *Registry) KnownTransactionHashes() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.transactionsHashSeen)
}

// KnownOutputKeys returns the number of distinct output keys committed to
// the registry, for metrics/diagnostics.
func (r *Registry) KnownOutputKeys() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.publicKeysSeen)
}
