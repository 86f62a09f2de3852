// Package dh implements the X25519-equivalent Diffie-Hellman exchange used
// for identity-to-peer encryption (spec.md §4.1) and the link handshake
// (spec.md §4.7). Grounded on the teacher's crypto/dh25519 package's
// scalar*point construction, reimplemented directly against the shared
// crypto/keys types rather than wrapping the original package.
package dh

import (
	"errors"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/keys"
)

// ErrInvalidInput is returned when either operand key is nil.
var ErrInvalidInput = errors.New("dh: invalid input")

// Secret computes the shared secret point aPriv * bPub and returns its
// 32-byte marshaled form.
func Secret(aPriv *keys.PrivateKey, bPub *keys.PublicKey) ([]byte, error) {
	if aPriv == nil || bPub == nil {
		return nil, ErrInvalidInput
	}
	privScalar, err := aPriv.ToScalar()
	if err != nil {
		return nil, err
	}
	pubPoint, err := bPub.ToPoint()
	if err != nil {
		return nil, err
	}
	secretPoint := keys.Suite.Point().Mul(privScalar, pubPoint)
	return secretPoint.MarshalBinary()
}
