package cncrypto

import (
	"errors"

	"filippo.io/edwards25519"
)

// ErrInvalidPoint is returned when a supplied public key, transaction
// public key, or derivation does not decode to a valid edwards25519 point
// (a malformed key), or, from DeriveKey, when the transaction public key is
// a small-order point whose derivation is the identity (a degenerate key).
var ErrInvalidPoint = errors.New("cncrypto: invalid curve point")

// ErrInvalidScalar is returned when a supplied secret scalar is not a
// canonical representation.
var ErrInvalidScalar = errors.New("cncrypto: invalid scalar")

func pointFromPublicKey(p PublicKey) (*edwards25519.Point, error) {
	pt, err := new(edwards25519.Point).SetBytes(p[:])
	if err != nil {
		return nil, ErrInvalidPoint
	}
	return pt, nil
}

func scalarFromSecret(s Scalar) (*edwards25519.Scalar, error) {
	sc, err := new(edwards25519.Scalar).SetCanonicalBytes(s[:])
	if err != nil {
		return nil, ErrInvalidScalar
	}
	return sc, nil
}

func publicKeyFromPoint(p *edwards25519.Point) PublicKey {
	var out PublicKey
	copy(out[:], p.Bytes())
	return out
}

func scalarToBytes(s *edwards25519.Scalar) Scalar {
	var out Scalar
	copy(out[:], s.Bytes())
	return out
}

// DeriveKey computes the per-transaction shared secret D = 8 * viewSecret *
// txPublicKey. It returns ErrInvalidPoint if txPublicKey is not a valid
// curve point or if the resulting D is the identity (a small-order
// txPublicKey) -- the degenerate-key case the scanner must treat as "no
// match".
func DeriveKey(txPublicKey PublicKey, viewSecret Scalar) (SharedSecret, error) {
	var zero SharedSecret

	r, err := pointFromPublicKey(txPublicKey)
	if err != nil {
		return zero, err
	}
	a, err := scalarFromSecret(viewSecret)
	if err != nil {
		return zero, err
	}

	shared := new(edwards25519.Point).ScalarMult(a, r)
	shared = new(edwards25519.Point).MultByCofactor(shared)
	if shared.Equal(edwards25519.NewIdentityPoint()) == 1 {
		return zero, ErrInvalidPoint
	}

	var out SharedSecret
	copy(out[:], shared.Bytes())
	return out, nil
}

// DerivationToScalar computes Hs(D || varint(outputIndex)), the scalar used
// both to transform a base key into a one-time output key and to recover a
// spend key candidate from an observed output key.
func DerivationToScalar(d SharedSecret, outputIndex uint64) (*edwards25519.Scalar, error) {
	buf := appendVarint(append([]byte(nil), d[:]...), outputIndex)
	return hashToScalar(buf)
}

// DerivePublicKey computes the one-time output key P = base + Hs(D,i)*G for
// an addressable output at outputIndex derived from shared secret d and
// base spend public key base. This is the inverse of UnderivePublicKey and
// is primarily useful for the sanity check the transfer builder performs
// after regenerating a key image.
func DerivePublicKey(d SharedSecret, outputIndex uint64, base PublicKey) (PublicKey, error) {
	hs, err := DerivationToScalar(d, outputIndex)
	if err != nil {
		return PublicKey{}, err
	}

	basePoint, err := pointFromPublicKey(base)
	if err != nil {
		return PublicKey{}, err
	}

	hsG := new(edwards25519.Point).ScalarBaseMult(hs)
	result := new(edwards25519.Point).Add(basePoint, hsG)
	return publicKeyFromPoint(result), nil
}

// UnderivePublicKey computes the spend-key candidate P' = outputKey -
// Hs(D,i)*G. The caller compares P' against the set of watched spend keys;
// equality means the output belongs to that account.
func UnderivePublicKey(d SharedSecret, outputIndex uint64, outputKey PublicKey) (PublicKey, error) {
	hs, err := DerivationToScalar(d, outputIndex)
	if err != nil {
		return PublicKey{}, err
	}

	outPoint, err := pointFromPublicKey(outputKey)
	if err != nil {
		return PublicKey{}, err
	}

	hsG := new(edwards25519.Point).ScalarBaseMult(hs)
	result := new(edwards25519.Point).Subtract(outPoint, hsG)
	return publicKeyFromPoint(result), nil
}

// DeriveSecretKey computes the one-time ephemeral secret key x = Hs(D,i) +
// spendSecret, the private counterpart of DerivePublicKey.
func DeriveSecretKey(d SharedSecret, outputIndex uint64, spendSecret Scalar) (Scalar, error) {
	hs, err := DerivationToScalar(d, outputIndex)
	if err != nil {
		return Scalar{}, err
	}

	base, err := scalarFromSecret(spendSecret)
	if err != nil {
		return Scalar{}, err
	}

	x := new(edwards25519.Scalar).Add(hs, base)
	return scalarToBytes(x), nil
}

// GenerateKeyImage computes I = x * Hp(ephemeralPub), the key image that
// lets the network detect a double spend of the output whose one-time
// public key is ephemeralPub.
func GenerateKeyImage(ephemeralPub PublicKey, ephemeralSec Scalar) (KeyImage, error) {
	x, err := scalarFromSecret(ephemeralSec)
	if err != nil {
		return KeyImage{}, err
	}

	hp := hashToPoint(ephemeralPub[:])
	img := new(edwards25519.Point).ScalarMult(x, hp)

	var out KeyImage
	copy(out[:], img.Bytes())
	return out, nil
}

// ScalarBasePoint returns spendSecret*G, the public counterpart of a spend
// secret key. Exposed for tests and for tooling that needs to derive an
// AccountPublicAddress from AccountKeys.
func ScalarBasePoint(secret Scalar) (PublicKey, error) {
	s, err := scalarFromSecret(secret)
	if err != nil {
		return PublicKey{}, err
	}
	p := new(edwards25519.Point).ScalarBaseMult(s)
	return publicKeyFromPoint(p), nil
}
