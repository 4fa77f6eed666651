package cncrypto

import (
	"encoding/binary"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of data using the original (pre-NIST,
// "legacy") Keccak-256 permutation, matching the CryptoNote family's use of
// Keccak rather than the later SHA3-256 standard.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// appendVarint appends idx to buf using the unsigned LEB128 varint
// encoding CryptoNote uses when hashing an output index alongside a shared
// secret.
func appendVarint(buf []byte, idx uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], idx)
	return append(buf, tmp[:n]...)
}

// hashToScalar reduces Keccak256(data) modulo the edwards25519 group order,
// the Hs(...) primitive used throughout key derivation.
func hashToScalar(data ...[]byte) (*edwards25519.Scalar, error) {
	digest := Keccak256(data...)

	// SetUniformBytes performs a wide (64-byte) reduction mod L; feeding
	// it the 32-byte digest left-padded with zero high bytes reduces
	// exactly the little-endian integer represented by digest, which is
	// the semantics CryptoNote's sc_reduce32 provides.
	var wide [64]byte
	copy(wide[:], digest[:])
	return new(edwards25519.Scalar).SetUniformBytes(wide[:])
}

// hashToPoint deterministically derives a curve point from data. CryptoNote
// uses an Elligator-based hash-to-curve (hash_to_ec); this package instead
// uses try-and-increment over Keccak256 until a canonical compressed point
// decodes, which is deterministic, pure, and terminates after a small
// expected number of iterations (P(success) ~= 1/2 per attempt).
func hashToPoint(data ...[]byte) *edwards25519.Point {
	seed := Keccak256(data...)

	for attempt := 0; ; attempt++ {
		candidate := seed
		if attempt > 0 {
			var ctr [1]byte
			ctr[0] = byte(attempt)
			candidate = Keccak256(seed[:], ctr[:])
		}

		p, err := new(edwards25519.Point).SetBytes(candidate[:])
		if err == nil {
			return p
		}
	}
}
