package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptonote-go/cnwallet/txtypes"
)

// FakeNode is an in-memory Node used by this module's own test suite and
// available to any downstream wallet test that wants a scriptable global-
// index source without a real daemon connection.
type FakeNode struct {
	mtx sync.Mutex

	// The following fields are protected by mtx.
	indices map[txtypes.Hash][]uint32
	errs    map[txtypes.Hash]error
	calls   []txtypes.Hash
}

// NewFakeNode returns an empty FakeNode.
func NewFakeNode() *FakeNode {
	return &FakeNode{
		indices: make(map[txtypes.Hash][]uint32),
		errs:    make(map[txtypes.Hash]error),
	}
}

// SetGlobalIndices scripts the response GetTransactionOutsGlobalIndices
// gives for txHash.
func (n *FakeNode) SetGlobalIndices(txHash txtypes.Hash, indices []uint32) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.indices[txHash] = indices
	delete(n.errs, txHash)
}

// SetError scripts GetTransactionOutsGlobalIndices to fail for txHash.
func (n *FakeNode) SetError(txHash txtypes.Hash, err error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.errs[txHash] = err
}

// GetTransactionOutsGlobalIndices implements Node.
func (n *FakeNode) GetTransactionOutsGlobalIndices(ctx context.Context,
	txHash txtypes.Hash) ([]uint32, error) {

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.calls = append(n.calls, txHash)

	if err, ok := n.errs[txHash]; ok {
		return nil, err
	}
	if idx, ok := n.indices[txHash]; ok {
		return idx, nil
	}

	return nil, fmt.Errorf("fake node: no global indices scripted for %s", txHash)
}

// Calls returns every transaction hash GetTransactionOutsGlobalIndices was
// invoked with, in call order, for use in test assertions.
func (n *FakeNode) Calls() []txtypes.Hash {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	out := make([]txtypes.Hash, len(n.calls))
	copy(out, n.calls)
	return out
}
