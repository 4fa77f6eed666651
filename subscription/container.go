package subscription

import (
	"sync"

	"github.com/cryptonote-go/cnwallet/txtypes"
)

// outputKey identifies a single matched output within a transaction.
type outputKey struct {
	txHash txtypes.Hash
	index  int
}

// MemoryContainer is a simple in-memory Container whose purpose is to
// exercise the consumer's contract in tests, and to back small tools that
// do not need persisted wallet state. It uses a hard-coded internal
// organization -- a flat map keyed by (txHash, outputInTransaction) -- and
// keeps no spend tracking of its own beyond the Spent flag a caller sets
// explicitly via MarkSpent.
type MemoryContainer struct {
	mtx sync.Mutex

	// The following fields are protected by mtx.
	transfers    map[outputKey]TransferDetails
	byTx         map[txtypes.Hash]txtypes.TransactionBlockInfo
	unconfirmed  map[txtypes.Hash]struct{}
	spent        map[outputKey]struct{}
}

// NewMemoryContainer returns an empty container.
func NewMemoryContainer() *MemoryContainer {
	return &MemoryContainer{
		transfers:   make(map[outputKey]TransferDetails),
		byTx:        make(map[txtypes.Hash]txtypes.TransactionBlockInfo),
		unconfirmed: make(map[txtypes.Hash]struct{}),
		spent:       make(map[outputKey]struct{}),
	}
}

// record stores transfer under blockInfo, updating the unconfirmed index.
func (c *MemoryContainer) record(blockInfo txtypes.TransactionBlockInfo, txHash txtypes.Hash,
	transfer txtypes.TransferInfo) {

	key := outputKey{txHash: txHash, index: transfer.OutputInTransaction}
	c.transfers[key] = TransferDetails{Transfer: transfer, BlockInfo: blockInfo}
	c.byTx[txHash] = blockInfo

	if blockInfo.Unconfirmed() {
		c.unconfirmed[txHash] = struct{}{}
	} else {
		delete(c.unconfirmed, txHash)
	}
}

// AddTransaction stores every transfer for txHash under blockInfo. It
// returns true if anything was recorded; a transaction with no transfers
// is not retained (mirrors real wallets ignoring transactions that neither
// credit nor debit the account).
func (c *MemoryContainer) AddTransaction(blockInfo txtypes.TransactionBlockInfo,
	tx txtypes.TransactionReader, transfers []txtypes.TransferInfo) bool {

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if len(transfers) == 0 {
		return false
	}

	txHash := tx.TransactionHash()
	for _, transfer := range transfers {
		c.record(blockInfo, txHash, transfer)
	}
	return true
}

// MarkTransactionConfirmed performs the pool->chain transition: every
// transfer previously recorded for txHash is re-keyed under the confirmed
// blockInfo, and real global indices are applied in output order.
func (c *MemoryContainer) MarkTransactionConfirmed(blockInfo txtypes.TransactionBlockInfo,
	txHash txtypes.Hash, globalIdxs []uint32) {

	c.mtx.Lock()
	defer c.mtx.Unlock()

	for key, details := range c.transfers {
		if key.txHash != txHash {
			continue
		}
		if key.index < len(globalIdxs) {
			details.Transfer.GlobalOutputIndex = globalIdxs[key.index]
		}
		details.BlockInfo = blockInfo
		c.transfers[key] = details
	}
	c.byTx[txHash] = blockInfo
	delete(c.unconfirmed, txHash)
}

// DeleteUnconfirmedTransaction removes every transfer recorded for an
// unconfirmed txHash, used when it is evicted from the mempool. A txHash
// that is not currently unconfirmed (unknown, or already confirmed) is left
// untouched.
func (c *MemoryContainer) DeleteUnconfirmedTransaction(txHash txtypes.Hash) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, ok := c.unconfirmed[txHash]; !ok {
		return
	}

	for key := range c.transfers {
		if key.txHash == txHash {
			delete(c.transfers, key)
			delete(c.spent, key)
		}
	}
	delete(c.byTx, txHash)
	delete(c.unconfirmed, txHash)
}

// MarkSpent flags the output at (txHash, outputIndex) as spent, for
// balance/history helpers built atop TransferDetails.
func (c *MemoryContainer) MarkSpent(txHash txtypes.Hash, outputIndex int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	key := outputKey{txHash: txHash, index: outputIndex}
	c.spent[key] = struct{}{}
	if details, ok := c.transfers[key]; ok {
		details.Spent = true
		c.transfers[key] = details
	}
}

// GetTransactionInformation implements Container.
func (c *MemoryContainer) GetTransactionInformation(txHash txtypes.Hash) (TransferDetails, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	blockInfo, known := c.byTx[txHash]
	if !known {
		return TransferDetails{}, false
	}

	// Any one matching transfer carries the shared block info; when a
	// transaction is known but recorded no transfers (should not happen
	// via AddTransaction, but may via a direct test seed), synthesize an
	// empty details value from byTx alone.
	for key, details := range c.transfers {
		if key.txHash == txHash {
			return details, true
		}
	}
	return TransferDetails{BlockInfo: blockInfo}, true
}

// GetUnconfirmedTransactions implements Container.
func (c *MemoryContainer) GetUnconfirmedTransactions() []txtypes.Hash {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	out := make([]txtypes.Hash, 0, len(c.unconfirmed))
	for h := range c.unconfirmed {
		out = append(out, h)
	}
	return out
}

// Balance sums the amount of every recorded, unspent transfer -- a
// wallet-facing helper built atop TransferDetails (see SPEC_FULL.md §3),
// not used by the consumer pipeline itself.
func (c *MemoryContainer) Balance() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var total uint64
	for _, details := range c.transfers {
		if !details.Spent {
			total += details.Transfer.Amount
		}
	}
	return total
}
