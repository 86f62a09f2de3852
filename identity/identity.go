// Package identity implements the cryptographic principal of spec.md §4.3:
// an X25519-equivalent encryption key pair plus an Ed25519-equivalent
// signing key pair, identity-to-peer authenticated encryption with ratchet
// support, signing, and announce validation. Grounded on the teacher's
// x3dh/alice and x3dh/bob key-agreement packages (minimal-signal/x3dh),
// generalized from the one-shot X3DH handshake into a durable identity that
// can encrypt/decrypt repeatedly and sign arbitrary messages.
package identity

import (
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/dh"
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hash"
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hkdf"
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/keys"
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/signature"
	"github.com/torlando-tech/reticulum-kt-sub003/crypto/token"
	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
)

const (
	PrivateSize = 64 // x25519 priv (32) || ed25519 priv (32)
	PublicSize  = 64 // x25519 pub (32) || ed25519 pub (32)
)

// Identity is a durable cryptographic principal. A public-only Identity
// (PublicOnly() == true) can encrypt and verify, but signing and decryption
// fail with rerrors.CryptoPublicOnly.
type Identity struct {
	xPriv  *keys.PrivateKey // nil if public-only
	xPub   keys.PublicKey
	edPriv *keys.PrivateKey // nil if public-only
	edPub  keys.PublicKey
}

// Create generates a brand-new identity with fresh key material.
func Create() (*Identity, error) {
	xPair, err := keys.NewPair()
	if err != nil {
		return nil, err
	}
	edPair, err := keys.NewPair()
	if err != nil {
		return nil, err
	}
	return &Identity{
		xPriv:  &xPair.Priv,
		xPub:   xPair.Pub,
		edPriv: &edPair.Priv,
		edPub:  edPair.Pub,
	}, nil
}

// FromPrivateBytes loads an identity from its 64-byte serialized private
// form: x25519_priv(32) || ed25519_priv(32).
func FromPrivateBytes(b []byte) (*Identity, error) {
	if len(b) != PrivateSize {
		return nil, rerrors.New(rerrors.ParseBadPayload)
	}
	var xPriv, edPriv keys.PrivateKey
	copy(xPriv[:], b[:32])
	copy(edPriv[:], b[32:64])

	xPub, err := xPriv.Public()
	if err != nil {
		return nil, err
	}
	edPub, err := edPriv.Public()
	if err != nil {
		return nil, err
	}

	return &Identity{xPriv: &xPriv, xPub: *xPub, edPriv: &edPriv, edPub: *edPub}, nil
}

// FromPublicBytes loads a public-only identity from its 64-byte serialized
// public form: x25519_pub(32) || ed25519_pub(32).
func FromPublicBytes(b []byte) (*Identity, error) {
	if len(b) != PublicSize {
		return nil, rerrors.New(rerrors.ParseBadPayload)
	}
	id := &Identity{}
	copy(id.xPub[:], b[:32])
	copy(id.edPub[:], b[32:64])
	return id, nil
}

// PublicOnly reports whether this identity lacks private key material.
func (id *Identity) PublicOnly() bool {
	return id.xPriv == nil || id.edPriv == nil
}

// PrivateBytes serializes the 64-byte private form, or fails for a
// public-only identity.
func (id *Identity) PrivateBytes() ([]byte, error) {
	if id.PublicOnly() {
		return nil, rerrors.New(rerrors.CryptoPublicOnly)
	}
	out := make([]byte, PrivateSize)
	copy(out[:32], id.xPriv[:])
	copy(out[32:], id.edPriv[:])
	return out, nil
}

// PublicBytes serializes the 64-byte public form.
func (id *Identity) PublicBytes() []byte {
	out := make([]byte, PublicSize)
	copy(out[:32], id.xPub[:])
	copy(out[32:], id.edPub[:])
	return out
}

// XPublicKey returns the X25519-role public key.
func (id *Identity) XPublicKey() keys.PublicKey { return id.xPub }

// EdPublicKey returns the Ed25519-role public key.
func (id *Identity) EdPublicKey() keys.PublicKey { return id.edPub }

// Hash computes the 16-byte identity hash: trunc16(sha256(public form)).
func (id *Identity) Hash() [16]byte {
	return hash.Trunc16(id.PublicBytes())
}

// Encrypt implements identity-to-peer encryption (spec.md §4.1):
// ephemeral_pub(32) || Token(HKDF(64, ECDH(ephemeral_priv, target_x_pub),
// salt=identity_hash, info=nil), plaintext). If ratchet is non-nil, it
// replaces id.xPub as the ECDH target, the forward-secrecy path.
func (id *Identity) Encrypt(plaintext []byte, ratchet *keys.PublicKey) ([]byte, error) {
	ephPriv, err := keys.New()
	if err != nil {
		return nil, err
	}
	ephPub, err := ephPriv.Public()
	if err != nil {
		return nil, err
	}

	target := id.xPub
	if ratchet != nil {
		target = *ratchet
	}

	shared, err := dh.Secret(ephPriv, &target)
	if err != nil {
		return nil, err
	}

	idHash := id.Hash()
	derived, err := hkdf.Expand64(shared, idHash[:], nil)
	if err != nil {
		return nil, err
	}
	var key64 [64]byte
	copy(key64[:], derived)

	tok, err := token.Encrypt(key64, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 32+len(tok))
	out = append(out, ephPub[:]...)
	out = append(out, tok...)
	return out, nil
}

// Decrypt implements identity-to-peer decryption. It tries, in order, the
// ratchet private keys (if enforceRatchets, only these), then the static
// X25519 private key — the first key yielding a valid HMAC wins.
func (id *Identity) Decrypt(ciphertext []byte, ratchets []keys.PrivateKey, enforceRatchets bool) ([]byte, error) {
	if id.xPriv == nil {
		return nil, rerrors.New(rerrors.CryptoPublicOnly)
	}
	if len(ciphertext) < 32 {
		return nil, rerrors.New(rerrors.CryptoTruncated)
	}

	var ephPub keys.PublicKey
	copy(ephPub[:], ciphertext[:32])
	tok := ciphertext[32:]

	idHash := id.Hash()

	tryKey := func(priv *keys.PrivateKey) ([]byte, error) {
		shared, err := dh.Secret(priv, &ephPub)
		if err != nil {
			return nil, err
		}
		derived, err := hkdf.Expand64(shared, idHash[:], nil)
		if err != nil {
			return nil, err
		}
		var key64 [64]byte
		copy(key64[:], derived)
		return token.Decrypt(key64, tok)
	}

	var lastErr error = rerrors.New(rerrors.CryptoHmac)
	for i := range ratchets {
		if pt, err := tryKey(&ratchets[i]); err == nil {
			return pt, nil
		} else {
			lastErr = err
		}
	}
	if enforceRatchets {
		return nil, lastErr
	}

	return tryKey(id.xPriv)
}

// Sign produces a signature over msg using the Ed25519-role key.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	if id.edPriv == nil {
		return nil, rerrors.New(rerrors.CryptoPublicOnly)
	}
	return signature.Sign(*id.edPriv, msg)
}

// Verify checks sig over msg against this identity's Ed25519-role public
// key.
func (id *Identity) Verify(sig, msg []byte) bool {
	return signature.Verify(id.edPub, msg, sig) == nil
}
