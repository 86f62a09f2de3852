// Package hash implements the SHA-256-derived hashes used throughout the
// wire format: the full 32-byte digest, the 16-byte truncated address hash,
// and the 10-byte name hash used in destination derivation.
package hash

import "crypto/sha256"

// Full returns the 32-byte SHA-256 digest of data.
func Full(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Trunc16 returns the first 16 bytes of SHA-256(data), the address hash used
// for destination hashes, packet hashes, and link IDs.
func Trunc16(data []byte) [16]byte {
	full := sha256.Sum256(data)
	var out [16]byte
	copy(out[:], full[:16])
	return out
}

// Name returns the 10-byte name hash over app_name + "." + joined aspects.
func Name(nameInput string) [10]byte {
	full := sha256.Sum256([]byte(nameInput))
	var out [10]byte
	copy(out[:], full[:10])
	return out
}
