package scan

import (
	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/cnwlog"
	"github.com/cryptonote-go/cnwallet/seenkeys"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// Counter is the subset of the metrics collector the preprocessor and
// transfer builder increment: once per transaction seen, and once per
// soft duplicate-key rejection. It is an interface so this package never
// imports the metrics/Prometheus stack directly. Both increments live here
// (rather than in the batch pipeline) so they fire identically whether a
// transaction arrives through OnNewBlocks or OnPoolUpdated.
type Counter interface {
	IncScanTransactions(n int)
	IncDuplicateKeysRejected()
}

type noopCounter struct{}

func (noopCounter) IncScanTransactions(int)   {}
func (noopCounter) IncDuplicateKeysRejected() {}

// NoopCounter is a Counter that discards every increment, used when the
// caller does not care about metrics (e.g. most tests).
var NoopCounter Counter = noopCounter{}

// Build turns a scanner hit for a single account (ownedIndices) into the
// TransferInfo records that account's subscription should record. It
// enforces the ledger-wide duplicate-output-key defense: if crediting this
// transaction would reuse an output key already credited to a different
// transaction (or reuse one twice within this transaction), the whole
// transaction's transfers for this account are dropped and Build returns a
// nil slice with no error, matching the spec's "soft failure" semantics.
func Build(accountKeys txtypes.AccountKeys, blockInfo txtypes.TransactionBlockInfo,
	tx txtypes.TransactionReader, ownedIndices []int, globalIdxs []uint32,
	registry *seenkeys.Registry, counter Counter) ([]txtypes.TransferInfo, error) {

	if counter == nil {
		counter = NoopCounter
	}

	txHash := tx.TransactionHash()
	txPubKey := tx.TransactionPublicKey()
	unconfirmed := blockInfo.Unconfirmed()

	session := registry.Begin(txHash)

	transfers := make([]txtypes.TransferInfo, 0, len(ownedIndices))
	for _, idx := range ownedIndices {
		if idx < 0 || idx >= tx.OutputCount() {
			session.Abort()
			return nil, ErrOutputIndexOutOfDomain
		}

		outType := tx.OutputType(idx)
		if outType != txtypes.OutputTypeKey && outType != txtypes.OutputTypeMultisignature {
			continue
		}

		globalIdx := txtypes.UnconfirmedGlobalIndex
		if !unconfirmed {
			globalIdx = globalIdxs[idx]
		}

		transfer := txtypes.TransferInfo{
			Type:                outType,
			TxPublicKey:         txPubKey,
			OutputInTransaction: idx,
			GlobalOutputIndex:   globalIdx,
		}

		var outputKey cncrypto.PublicKey
		switch outType {
		case txtypes.OutputTypeKey:
			out, amount := tx.GetKeyOutput(idx)
			transfer.Amount = amount
			outputKey = out.Key

			derivation, err := cncrypto.DeriveKey(txPubKey, accountKeys.ViewSecretKey)
			if err != nil {
				session.Abort()
				return nil, err
			}
			ephemeralPub, err := cncrypto.DerivePublicKey(derivation, uint64(idx), accountKeys.Address.SpendPublicKey)
			if err != nil {
				session.Abort()
				return nil, err
			}
			if ephemeralPub != out.Key {
				session.Abort()
				panic(errEphemeralKeyMismatch{txHash: txHash.String(), index: idx})
			}
			ephemeralSec, err := cncrypto.DeriveSecretKey(derivation, uint64(idx), accountKeys.SpendSecretKey)
			if err != nil {
				session.Abort()
				return nil, err
			}
			keyImage, err := cncrypto.GenerateKeyImage(ephemeralPub, ephemeralSec)
			if err != nil {
				session.Abort()
				return nil, err
			}

			transfer.OutputKey = out.Key
			transfer.KeyImage = keyImage

		case txtypes.OutputTypeMultisignature:
			out, amount := tx.GetMultisigOutput(idx)
			transfer.Amount = amount
			transfer.RequiredSignatures = out.RequiredSignatures
			if len(out.Keys) > 0 {
				outputKey = out.Keys[0]
			}
		}

		if dupHash, dup := session.Stage(outputKey); dup {
			cnwlog.ScanLog.Errorf("duplicate output key %s in tx %s "+
				"(already credited to tx %s); dropping transfers for "+
				"account %s", outputKey, txHash, dupHash,
				accountKeys.Address.SpendPublicKey)
			counter.IncDuplicateKeysRejected()
			session.Abort()
			return nil, nil
		}

		transfers = append(transfers, transfer)
	}

	session.Commit()
	return transfers, nil
}
