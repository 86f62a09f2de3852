// Package token implements the authenticated-encryption construction used
// throughout the protocol (spec.md §4.1): IV || AES-256-CBC(enc_key, IV,
// PKCS#7(plaintext)) || HMAC-SHA-256(hmac_key, IV || ciphertext), built from
// a 64-byte key split into a 32-byte encryption key and a 32-byte HMAC key.
// Grounded on the teacher's crypto/aes256 + crypto/hmac + crypto/sha256
// packages' CBC-then-HMAC shape, reimplemented directly on the standard
// library's crypto/aes, crypto/cipher, and crypto/hmac rather than wrapping
// those packages, so the protocol's one AEAD primitive lives in one place
// spec.md names instead of three.
package token

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
)

const (
	ivSize      = 16
	hmacSize    = 32
	minTokenLen = ivSize + aes.BlockSize + hmacSize
)

// Encrypt produces IV || ciphertext || HMAC for plaintext under the 64-byte
// key (first 32 bytes the AES key, last 32 the HMAC key).
func Encrypt(key [64]byte, plaintext []byte) ([]byte, error) {
	encKey := key[:32]
	hmacKey := key[32:]

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	out := make([]byte, 0, len(iv)+len(ciphertext)+len(tag))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// Decrypt verifies the HMAC in constant time before attempting decryption,
// per spec.md §4.1's ordering requirement.
func Decrypt(key [64]byte, data []byte) ([]byte, error) {
	if len(data) < minTokenLen {
		return nil, rerrors.New(rerrors.CryptoTruncated)
	}

	encKey := key[:32]
	hmacKey := key[32:]

	iv := data[:ivSize]
	ciphertext := data[ivSize : len(data)-hmacSize]
	gotTag := data[len(data)-hmacSize:]

	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, rerrors.New(rerrors.CryptoTruncated)
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	wantTag := mac.Sum(nil)

	if !hmac.Equal(gotTag, wantTag) {
		return nil, rerrors.New(rerrors.CryptoHmac)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)

	return pkcs7Unpad(plainPadded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padtext := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(append([]byte{}, data...), padtext...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, rerrors.New(rerrors.CryptoBadPadding)
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > n || padLen > aes.BlockSize {
		return nil, rerrors.New(rerrors.CryptoBadPadding)
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, rerrors.New(rerrors.CryptoBadPadding)
		}
	}
	return data[:n-padLen], nil
}
