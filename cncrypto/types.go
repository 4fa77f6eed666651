// Package cncrypto implements the low-level elliptic-curve and hashing
// primitives the wallet-side transaction consumer needs to test output
// ownership and regenerate spendable key material. Every function here is
// pure: no I/O, no package-level mutable state.
package cncrypto

import "encoding/hex"

// KeySize is the fixed width, in bytes, of every scalar and point type in
// this package.
const KeySize = 32

// Scalar is a 32-byte little-endian integer modulo the edwards25519 group
// order. It is used for both secret keys and the Hs(...) hash-to-scalar
// outputs used throughout key derivation.
type Scalar [KeySize]byte

// PublicKey is a compressed edwards25519 point: a spend or view public key,
// a transaction public key, or a one-time output key.
type PublicKey [KeySize]byte

// SharedSecret is the per-transaction shared secret D = 8*a*R produced by
// DeriveKey, consumed by every subsequent derivation in this package.
type SharedSecret [KeySize]byte

// KeyImage is the one-time tag that lets the network detect a double spend
// of a given output without revealing which output was spent.
type KeyImage [KeySize]byte

func (s Scalar) String() string       { return hex.EncodeToString(s[:]) }
func (p PublicKey) String() string    { return hex.EncodeToString(p[:]) }
func (d SharedSecret) String() string { return hex.EncodeToString(d[:]) }
func (k KeyImage) String() string     { return hex.EncodeToString(k[:]) }

// IsZero reports whether p is the all-zero sentinel used to mark "no
// transaction public key present" (the null key).
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}
