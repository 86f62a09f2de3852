package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hash"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

func packetFor(destHash [16]byte, payload []byte, ratchetPresent bool) *wire.Packet {
	var flag uint8
	if ratchetPresent {
		flag = 1
	}
	return &wire.Packet{
		HeaderType:      wire.Header1,
		PacketType:      wire.TypeAnnounce,
		ContextFlag:     flag,
		DestinationHash: destHash,
		Context:         wire.CtxNone,
		Payload:         payload,
	}
}

func TestCreateAndSerializeRoundTrip(t *testing.T) {
	id, err := Create()
	require.NoError(t, err)
	require.False(t, id.PublicOnly())

	priv, err := id.PrivateBytes()
	require.NoError(t, err)

	loaded, err := FromPrivateBytes(priv)
	require.NoError(t, err)
	assert.Equal(t, id.Hash(), loaded.Hash())
	assert.Equal(t, id.PublicBytes(), loaded.PublicBytes())
}

// Invariant 2: for every identity and plaintext, decrypt(encrypt(m)) == m.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	id, err := Create()
	require.NoError(t, err)

	for _, msg := range [][]byte{[]byte(""), []byte("ping"), []byte("a longer message body")} {
		ct, err := id.Encrypt(msg, nil)
		require.NoError(t, err)

		pt, err := id.Decrypt(ct, nil, false)
		require.NoError(t, err)
		assert.Equal(t, msg, pt)
	}
}

func TestPublicOnlyIdentityCannotSignOrDecrypt(t *testing.T) {
	id, err := Create()
	require.NoError(t, err)

	pub, err := FromPublicBytes(id.PublicBytes())
	require.NoError(t, err)

	_, err = pub.Sign([]byte("x"))
	require.Error(t, err)

	ct, err := id.Encrypt([]byte("hi"), nil)
	require.NoError(t, err)
	_, err = pub.Decrypt(ct, nil, false)
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	id, err := Create()
	require.NoError(t, err)

	msg := []byte("hello mesh")
	sig, err := id.Sign(msg)
	require.NoError(t, err)
	assert.True(t, id.Verify(sig, msg))

	sig[0] ^= 0xFF
	assert.False(t, id.Verify(sig, msg))
}

// S2 — announce validation without ratchet (spec.md §8).
func TestValidateAnnounceWithoutRatchet(t *testing.T) {
	var privBytes [64]byte
	for i := range privBytes {
		privBytes[i] = byte(i + 1)
	}
	id, err := FromPrivateBytes(privBytes[:])
	require.NoError(t, err)

	nameHashInput := "test" + "." + "a"
	nameHash := hash.Name(nameHashInput)

	idHash := id.Hash()
	destHash := hash.Trunc16(append(append([]byte{}, nameHash[:]...), idHash[:]...))

	payload, ratchetPresent, err := BuildAnnouncePayload(id, destHash, nameHash, nil, nil)
	require.NoError(t, err)
	assert.False(t, ratchetPresent)

	packet := packetFor(destHash, payload, ratchetPresent)

	entry, err := ValidateAnnounce(packet)
	require.NoError(t, err)
	assert.Equal(t, id.PublicBytes(), entry.PublicKey)
	assert.Equal(t, destHash, entry.DestinationHash)

	// Bit-flipped signature must reject.
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-1] ^= 0xFF
	tamperedPacket := packetFor(destHash, tampered, ratchetPresent)
	_, err = ValidateAnnounce(tamperedPacket)
	require.Error(t, err)
}
