package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randKey() [64]byte {
	var key [64]byte
	for i := range key {
		key[i] = byte(i*7 + 1)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randKey()
	plaintexts := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("ping"),
		make([]byte, 1024),
	}

	for _, pt := range plaintexts {
		ct, err := Encrypt(key, pt)
		require.NoError(t, err)

		got, err := Decrypt(key, ct)
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
}

func TestDecryptTruncated(t *testing.T) {
	key := randKey()
	_, err := Decrypt(key, make([]byte, 10))
	require.Error(t, err)
}

func TestDecryptBadHmac(t *testing.T) {
	key := randKey()
	ct, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0xFF
	_, err = Decrypt(key, ct)
	require.Error(t, err)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := randKey()
	ct, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)

	other := randKey()
	other[0] ^= 0xFF
	_, err = Decrypt(other, ct)
	require.Error(t, err)
}
