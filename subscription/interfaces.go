// Package subscription declares the contract the consumer facade expects
// from a per-account subscription and its backing container, and supplies
// an in-memory reference implementation good enough for tests and small
// tools. Production wallets persist this state to disk and implement the
// same interfaces.
package subscription

import (
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// TransferDetails is a read-only projection of a single matched output,
// combining its TransferInfo with the block it was (or was not yet)
// confirmed in and whether it has since been spent. It is assembled by a
// Container from state it already stores; the core pipeline never
// constructs one directly.
type TransferDetails struct {
	Transfer  txtypes.TransferInfo
	BlockInfo txtypes.TransactionBlockInfo
	Spent     bool
}

// Container is the read surface a Subscription's backing store must
// expose to the consumer facade.
type Container interface {
	// GetTransactionInformation reports the confirmation state currently
	// recorded for txHash, if any. The consumer uses this to distinguish
	// "never seen this tx" from "already confirmed" from "still
	// unconfirmed" when deciding between AddTransaction and
	// MarkTransactionConfirmed.
	GetTransactionInformation(txHash txtypes.Hash) (TransferDetails, bool)

	// GetUnconfirmedTransactions returns every transaction hash this
	// container currently considers mempool-resident.
	GetUnconfirmedTransactions() []txtypes.Hash
}

// Subscription is the per-account contract the consumer facade drives.
// Every method is invoked from the consumer's own single goroutine (or,
// during a batch, from the single-threaded aggregation stage), so
// implementations do not need to be safe for concurrent calls from
// multiple consumer operations -- only internally consistent against the
// consumer's own serialized call sequence.
type Subscription interface {
	// GetSyncStart returns this subscription's lower scan bound.
	GetSyncStart() txtypes.SynchronizationStart

	// GetContainer returns the backing store for this subscription.
	GetContainer() Container

	// GetKeys returns the full key material for this account.
	GetKeys() txtypes.AccountKeys

	// GetAddress returns this account's public address.
	GetAddress() txtypes.AccountPublicAddress

	// OnBlockchainDetach notifies the subscription of a chain
	// reorganization removing every block above height.
	OnBlockchainDetach(height uint64)

	// OnError notifies the subscription that a batch starting at
	// startHeight failed with err and was not committed.
	OnError(err error, startHeight uint64)

	// AddTransaction records a newly observed transaction. transfers may
	// be empty (the transaction spends this account's outputs without
	// crediting it any new ones). AddTransaction reports whether
	// anything was actually recorded; a subscription may ignore a
	// transaction with no owned outputs and no spends against it.
	AddTransaction(blockInfo txtypes.TransactionBlockInfo, tx txtypes.TransactionReader,
		transfers []txtypes.TransferInfo) bool

	// MarkTransactionConfirmed performs the one-way pool->chain
	// transition for a transaction this subscription already knows as
	// unconfirmed.
	MarkTransactionConfirmed(blockInfo txtypes.TransactionBlockInfo, txHash txtypes.Hash,
		globalIdxs []uint32)

	// MarkTransactionSafe notifies the subscription that txHash is now
	// safe to rely on for spending (e.g. has enough confirmations).
	MarkTransactionSafe(txHash txtypes.Hash)

	// DeleteUnconfirmedTransaction removes a pool transaction that was
	// evicted from the mempool without confirming.
	DeleteUnconfirmedTransaction(txHash txtypes.Hash)

	// AdvanceHeight records that this subscription has scanned through
	// height.
	AdvanceHeight(height uint64)
}
