package iface

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hkdf"
)

// Mask wraps packet with an IFAC prefix: an HMAC tag over the packet
// (truncated to size bytes) followed by the packet body XOR-mixed with a
// secret-derived keystream (spec.md §4.5).
func Mask(secret []byte, size int, packet []byte) ([]byte, error) {
	hmacKey, streamKey, err := deriveIFACKeys(secret)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(packet)
	tag := mac.Sum(nil)[:size]

	stream, err := keystream(streamKey, len(packet))
	if err != nil {
		return nil, err
	}
	body := make([]byte, len(packet))
	for i := range packet {
		body[i] = packet[i] ^ stream[i]
	}

	out := make([]byte, 0, size+len(body))
	out = append(out, tag...)
	out = append(out, body...)
	return out, nil
}

// Unmask reverses Mask and verifies the tag. Packets failing verification
// must be silently dropped by the caller.
func Unmask(secret []byte, size int, masked []byte) ([]byte, bool) {
	if len(masked) < size {
		return nil, false
	}
	tag := masked[:size]
	body := masked[size:]

	hmacKey, streamKey, err := deriveIFACKeys(secret)
	if err != nil {
		return nil, false
	}

	stream, err := keystream(streamKey, len(body))
	if err != nil {
		return nil, false
	}
	packet := make([]byte, len(body))
	for i := range body {
		packet[i] = body[i] ^ stream[i]
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(packet)
	want := mac.Sum(nil)[:size]
	if !hmac.Equal(tag, want) {
		return nil, false
	}
	return packet, true
}

func deriveIFACKeys(secret []byte) (hmacKey, streamKey []byte, err error) {
	derived, err := hkdf.Expand64(secret, nil, []byte("ifac"))
	if err != nil {
		return nil, nil, err
	}
	return derived[:32], derived[32:], nil
}

// keystream derives n bytes of secret-dependent mixing material. HKDF's
// expand step caps output at 255 hash lengths (~8KB for SHA-256), ample for
// interface-sized frames.
func keystream(streamKey []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	derived, err := hkdfExpandN(streamKey, n)
	if err != nil {
		return nil, err
	}
	copy(out, derived)
	return out, nil
}

func hkdfExpandN(key []byte, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := hkdf.KDF(sha256.New, key, nil, []byte("stream"), buf)
	if err != nil {
		return nil, err
	}
	return buf[:read], nil
}
