package scan

import (
	"context"

	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/node"
	"github.com/cryptonote-go/cnwallet/seenkeys"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// SubscriptionView is the minimal per-subscription information the
// preprocessor needs: identity (for result keying) and the key material
// required to build transfers. It is deliberately narrower than the full
// Subscription contract the consumer talks to, so this package does not
// need to import the subscription package.
type SubscriptionView struct {
	Keys txtypes.AccountKeys
}

// Preprocess runs the scanner across the union of every subscription's
// spend key, resolves global output indices for confirmed transactions via
// node, and builds per-subscription transfers for every match. It performs
// no mutation of subscription state; the only side effects are on registry
// (the duplicate-key defense) and the returned value.
func Preprocess(ctx context.Context, blockInfo txtypes.TransactionBlockInfo,
	tx txtypes.TransactionReader, subs []SubscriptionView, n node.Node,
	registry *seenkeys.Registry, counter Counter) (txtypes.PreprocessInfo, error) {

	if counter == nil {
		counter = NoopCounter
	}
	counter.IncScanTransactions(1)

	spendKeys := make(map[cncrypto.PublicKey]struct{}, len(subs))
	bySpendKey := make(map[cncrypto.PublicKey]txtypes.AccountKeys, len(subs))
	for _, s := range subs {
		spendKeys[s.Keys.Address.SpendPublicKey] = struct{}{}
		bySpendKey[s.Keys.Address.SpendPublicKey] = s.Keys
	}

	// Scanning needs a single view secret; every subscription on a
	// consumer shares one, so any subscription's is representative. If
	// there are no subscriptions there is nothing to scan.
	if len(subs) == 0 {
		return txtypes.PreprocessInfo{}, nil
	}
	viewSecret := subs[0].Keys.ViewSecretKey

	hits := Scan(tx, viewSecret, spendKeys)
	if len(hits) == 0 {
		return txtypes.PreprocessInfo{}, nil
	}

	var globalIdxs []uint32
	if !blockInfo.Unconfirmed() {
		var err error
		globalIdxs, err = n.GetTransactionOutsGlobalIndices(ctx, tx.TransactionHash())
		if err != nil {
			return txtypes.PreprocessInfo{}, err
		}
	}

	info := txtypes.PreprocessInfo{
		GlobalIdxs: globalIdxs,
		Outputs:    make(map[cncrypto.PublicKey][]txtypes.TransferInfo),
	}

	for spendKey, indices := range hits {
		accountKeys := bySpendKey[spendKey]

		transfers, err := Build(accountKeys, blockInfo, tx, indices, globalIdxs, registry, counter)
		if err != nil {
			return txtypes.PreprocessInfo{}, err
		}
		if len(transfers) > 0 {
			info.Outputs[spendKey] = transfers
		}
	}

	return info, nil
}
