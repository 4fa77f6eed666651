// Package node declares the blockchain/mempool event source the consumer
// facade and preprocessor depend on, and provides a fake implementation for
// tests. Production wallets supply their own Node backed by a real RPC or
// P2P connection to a daemon.
package node

import (
	"context"

	"github.com/cryptonote-go/cnwallet/txtypes"
)

// Node is the external collaborator that resolves ledger-wide global
// output indices for a transaction. The original wallet's node API is
// callback-shaped (the caller registers a callback, which fires once the
// lookup completes); this interface instead exposes the lookup as an
// ordinary blocking call that honors ctx cancellation, which is the
// idiomatic Go equivalent of "block the calling goroutine until the async
// result arrives" and requires no extra future/promise plumbing. A
// genuinely asynchronous implementation satisfies this interface by doing
// its internal channel-wait inside the method body.
type Node interface {
	// GetTransactionOutsGlobalIndices resolves the ledger-wide global
	// output index of every output in the transaction identified by
	// txHash, in output order.
	GetTransactionOutsGlobalIndices(ctx context.Context, txHash txtypes.Hash) ([]uint32, error)
}
