package scan

import "errors"

// ErrOutputIndexOutOfDomain is returned by Build when an owned index from
// the scanner exceeds the transaction's actual output count -- a hard
// preprocessing error, since it indicates the scanner and transaction
// reader have gone out of sync with each other.
var ErrOutputIndexOutOfDomain = errors.New("scan: output index out of domain")

// errEphemeralKeyMismatch marks the invariant violation where the ephemeral
// public key regenerated from account keys does not match the output key
// the scanner matched against. It indicates corrupted scanner input and is
// raised as a panic by Build, to be recovered at the worker boundary.
type errEphemeralKeyMismatch struct {
	txHash string
	index  int
}

func (e errEphemeralKeyMismatch) Error() string {
	return "scan: regenerated ephemeral public key does not match output key in tx " +
		e.txHash
}
