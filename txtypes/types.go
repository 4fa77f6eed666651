// Package txtypes holds the data model shared by every package in this
// module: the transaction-reading capability set the node layer must
// provide, the account/address types a subscription is keyed by, and the
// sentinels that mark mempool-resident (unconfirmed) state.
package txtypes

import (
	"encoding/hex"
	"math"

	"github.com/cryptonote-go/cnwallet/cncrypto"
)

// Hash is a 32-byte transaction or block identifier.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// UnconfirmedHeight is the sentinel block height marking a mempool-resident
// transaction. It MUST match the ledger-wide sentinel the surrounding
// wallet's currency parameters define.
const UnconfirmedHeight uint64 = math.MaxUint64

// UnconfirmedGlobalIndex is the sentinel global output index carried by a
// TransferInfo for an output that has not yet been confirmed on-chain.
const UnconfirmedGlobalIndex uint32 = math.MaxUint32

// TransactionBlockInfo locates a transaction within the chain (or the
// mempool, via the UnconfirmedHeight sentinel).
type TransactionBlockInfo struct {
	Height           uint64
	Timestamp        int64
	TransactionIndex uint32
}

// Unconfirmed reports whether this block info refers to a mempool
// transaction rather than a confirmed one.
func (b TransactionBlockInfo) Unconfirmed() bool {
	return b.Height == UnconfirmedHeight
}

// UnconfirmedBlockInfo is the well-known block info value used for every
// pool transaction.
var UnconfirmedBlockInfo = TransactionBlockInfo{Height: UnconfirmedHeight}

// OutputType tags the kind of output an index refers to within a
// transaction.
type OutputType int

const (
	// OutputTypeKey is a standard one-time-key output.
	OutputTypeKey OutputType = iota
	// OutputTypeMultisignature is a multisignature output.
	OutputTypeMultisignature
	// OutputTypeOther is any output this module does not scan (e.g. a
	// burn or script output).
	OutputTypeOther
)

// KeyOutput is a standard one-time-key transaction output.
type KeyOutput struct {
	Key cncrypto.PublicKey
}

// MultisignatureOutput is a transaction output spendable by any
// RequiredSignatures of the listed Keys.
type MultisignatureOutput struct {
	Keys               []cncrypto.PublicKey
	RequiredSignatures uint32
}

// TransactionReader is the capability set the node layer exposes for a
// single transaction. It is a read-only view; the scanner and transfer
// builder never mutate anything reachable through it.
type TransactionReader interface {
	// TransactionPublicKey returns the per-transaction public key R used
	// to derive every output's shared secret. The null (all-zero) key
	// marks a transaction with no derivable outputs.
	TransactionPublicKey() cncrypto.PublicKey

	// TransactionHash returns this transaction's identifying hash.
	TransactionHash() Hash

	// OutputCount returns the number of outputs in the transaction.
	OutputCount() int

	// OutputType reports the kind of output at index i.
	OutputType(i int) OutputType

	// GetKeyOutput returns the output and its amount at index i. It is
	// only valid to call when OutputType(i) == OutputTypeKey.
	GetKeyOutput(i int) (KeyOutput, uint64)

	// GetMultisigOutput returns the output and its amount at index i. It
	// is only valid to call when OutputType(i) == OutputTypeMultisignature.
	GetMultisigOutput(i int) (MultisignatureOutput, uint64)
}

// AccountPublicAddress identifies a subscribable account: a spend/view
// public key pair.
type AccountPublicAddress struct {
	SpendPublicKey cncrypto.PublicKey
	ViewPublicKey  cncrypto.PublicKey
}

// AccountKeys carries the full key material for a subscribed account,
// including the secret keys needed to regenerate key images.
type AccountKeys struct {
	Address        AccountPublicAddress
	SpendSecretKey cncrypto.Scalar
	ViewSecretKey  cncrypto.Scalar
}

// SynchronizationStart is the per-subscription lower bound for scanning.
type SynchronizationStart struct {
	Height    uint64
	Timestamp int64
}

// Min returns the component-wise minimum of a and b.
func (a SynchronizationStart) Min(b SynchronizationStart) SynchronizationStart {
	out := a
	if b.Height < out.Height {
		out.Height = b.Height
	}
	if b.Timestamp < out.Timestamp {
		out.Timestamp = b.Timestamp
	}
	return out
}

// MaxSynchronizationStart is the aggregate sync start when no subscriptions
// are registered: "scan from the end of time", i.e. nothing.
var MaxSynchronizationStart = SynchronizationStart{
	Height:    math.MaxUint64,
	Timestamp: math.MaxInt64,
}

// TransferInfo is the materialized result of a matched output: everything a
// subscription needs to later spend it (or, for multisig, to recognize it
// needs co-signers).
type TransferInfo struct {
	Type                OutputType
	TxPublicKey         cncrypto.PublicKey
	OutputInTransaction int
	GlobalOutputIndex   uint32
	Amount              uint64

	// Populated only when Type == OutputTypeKey.
	OutputKey cncrypto.PublicKey
	KeyImage  cncrypto.KeyImage

	// Populated only when Type == OutputTypeMultisignature.
	RequiredSignatures uint32
}

// PreprocessInfo is the transient, per-transaction result of running the
// preprocessor: the transaction's whole global-index list plus a per-spend-
// key map of matched transfers.
type PreprocessInfo struct {
	GlobalIdxs []uint32
	Outputs    map[cncrypto.PublicKey][]TransferInfo
}

// IsEmpty reports whether no subscription matched anything in this
// transaction.
func (p PreprocessInfo) IsEmpty() bool {
	return len(p.Outputs) == 0
}

// CompleteBlock is one block of a contiguous run passed to OnNewBlocks: its
// timestamp (for sync-start filtering) and its transactions in block order.
type CompleteBlock struct {
	Timestamp    int64
	Transactions []TransactionReader
}

// AccountSubscription is the input to AddSubscription: the key material for
// the account being subscribed plus the height/timestamp it should be
// scanned from.
type AccountSubscription struct {
	Keys      AccountKeys
	SyncStart SynchronizationStart
}
