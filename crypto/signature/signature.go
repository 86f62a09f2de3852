// Package signature implements the Ed25519-equivalent sign/verify role of an
// identity via Schnorr signatures over the same curve group. Grounded on the
// teacher's crypto/signer_schnorr package's schnorr.Sign/Verify usage,
// reimplemented directly against the shared crypto/keys types rather than
// wrapping the original package.
package signature

import (
	"go.dedis.ch/kyber/v4/sign/schnorr"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/keys"
)

// Sign produces a deterministic-length signature over msg with priv.
func Sign(priv keys.PrivateKey, msg []byte) ([]byte, error) {
	scalar, err := priv.ToScalar()
	if err != nil {
		return nil, err
	}
	return schnorr.Sign(keys.Suite, scalar, msg)
}

// Verify checks sig over msg against pub.
func Verify(pub keys.PublicKey, msg, sig []byte) error {
	point, err := pub.ToPoint()
	if err != nil {
		return err
	}
	return schnorr.Verify(keys.Suite, point, msg, sig)
}
