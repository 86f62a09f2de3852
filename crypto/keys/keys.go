// Package keys provides the 32-byte asymmetric key pair used by both the
// encryption role (X25519-equivalent ECDH) and the signing role (Ed25519-
// equivalent Schnorr signatures) of an identity. Both roles share the same
// kyber curve group; identity.Identity keeps two independent pairs of this
// type so the two roles never share key material, matching spec.md's
// distinct X25519/Ed25519 key pairs.
package keys

import (
	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"
)

// Suite is the curve group backing both key roles.
var Suite = suites.MustFind("Ed25519")

type (
	// PrivateKey is a 32-byte private scalar.
	PrivateKey [32]byte
	// PublicKey is a 32-byte public point.
	PublicKey [32]byte
	// Pair bundles a private key with its public counterpart.
	Pair struct {
		Priv PrivateKey
		Pub  PublicKey
	}
)

// New generates a fresh random key pair's private half.
func New() (*PrivateKey, error) {
	priv := Suite.Scalar().Pick(Suite.RandomStream())
	raw, err := priv.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var out PrivateKey
	copy(out[:], raw)
	return &out, nil
}

// NewPair generates a fresh random key pair.
func NewPair() (*Pair, error) {
	priv, err := New()
	if err != nil {
		return nil, err
	}
	pub, err := priv.Public()
	if err != nil {
		return nil, err
	}
	return &Pair{Priv: *priv, Pub: *pub}, nil
}

// Public derives the public key for a private key.
func (priv *PrivateKey) Public() (*PublicKey, error) {
	scalar, err := priv.ToScalar()
	if err != nil {
		return nil, err
	}
	point := Suite.Point().Mul(scalar, nil)
	raw, err := point.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var out PublicKey
	copy(out[:], raw)
	return &out, nil
}

// ToScalar unmarshals the raw private key into a kyber.Scalar.
func (priv *PrivateKey) ToScalar() (kyber.Scalar, error) {
	s := Suite.Scalar()
	if err := s.UnmarshalBinary(priv[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// ToPoint unmarshals the raw public key into a kyber.Point.
func (pub *PublicKey) ToPoint() (kyber.Point, error) {
	p := Suite.Point()
	if err := p.UnmarshalBinary(pub[:]); err != nil {
		return nil, err
	}
	return p, nil
}

// Equals performs a constant-time-irrelevant (public data) comparison.
func (pub *PublicKey) Equals(other *PublicKey) bool {
	if pub == nil || other == nil {
		return false
	}
	return *pub == *other
}

// IsZero reports whether the key is the zero value (no key material).
func (priv *PrivateKey) IsZero() bool {
	var zero PrivateKey
	return priv == nil || *priv == zero
}
