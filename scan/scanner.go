// Package scan implements the per-output stealth-address ownership test,
// the transfer-builder that turns a scanner hit into spendable key
// material, and the per-transaction preprocessor that ties both together
// with a node's global-index lookup.
package scan

import (
	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/txtypes"
)

// Scan tests every output of tx against the given view secret and set of
// watched spend keys, returning the output indices owned by each matched
// spend key. It is a pure function: it performs no I/O and mutates no
// state reachable from its callers.
//
// A Key output is tested by underiving a spend-key candidate at the
// output's running key index. A Multisignature output is tested per
// sub-key, but at the *output's index*, not the running key index -- this
// asymmetry is a known quirk of the CryptoNote wire format and must be
// preserved for ledger compatibility.
func Scan(tx txtypes.TransactionReader, viewSecret cncrypto.Scalar,
	spendKeys map[cncrypto.PublicKey]struct{}) map[cncrypto.PublicKey][]int {

	result := make(map[cncrypto.PublicKey][]int)

	txPubKey := tx.TransactionPublicKey()
	derivation, err := cncrypto.DeriveKey(txPubKey, viewSecret)
	if err != nil {
		return result
	}

	keyIndex := uint64(0)
	count := tx.OutputCount()

	for i := 0; i < count; i++ {
		switch tx.OutputType(i) {
		case txtypes.OutputTypeKey:
			out, _ := tx.GetKeyOutput(i)

			candidate, err := cncrypto.UnderivePublicKey(derivation, keyIndex, out.Key)
			if err == nil {
				if _, ok := spendKeys[candidate]; ok {
					result[candidate] = append(result[candidate], i)
				}
			}
			keyIndex++

		case txtypes.OutputTypeMultisignature:
			out, _ := tx.GetMultisigOutput(i)

			for _, subKey := range out.Keys {
				candidate, err := cncrypto.UnderivePublicKey(derivation, uint64(i), subKey)
				if err == nil {
					if _, ok := spendKeys[candidate]; ok {
						result[candidate] = append(result[candidate], i)
					}
				}
				keyIndex++
			}

		case txtypes.OutputTypeOther:
			// Not addressable; does not advance keyIndex.
		}
	}

	return result
}
