package iface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskUnmaskRoundTrip(t *testing.T) {
	secret := []byte("a shared ifac secret")
	packet := []byte("some packet bytes go here")

	masked, err := Mask(secret, 8, packet)
	require.NoError(t, err)

	got, ok := Unmask(secret, 8, masked)
	require.True(t, ok)
	assert.Equal(t, packet, got)
}

func TestUnmaskWrongSecretFails(t *testing.T) {
	packet := []byte("payload")
	masked, err := Mask([]byte("secretA"), 8, packet)
	require.NoError(t, err)

	_, ok := Unmask([]byte("secretB"), 8, masked)
	assert.False(t, ok)
}

func TestUnmaskTamperedFails(t *testing.T) {
	secret := []byte("shared secret")
	packet := []byte("payload")
	masked, err := Mask(secret, 8, packet)
	require.NoError(t, err)

	masked[len(masked)-1] ^= 0xFF
	_, ok := Unmask(secret, 8, masked)
	assert.False(t, ok)
}

func TestMemoryAdapterLoopback(t *testing.T) {
	a, b := NewMemoryPair("a", "b")

	require.NoError(t, a.Send([]byte("hello")))
	select {
	case frame := <-b.Inbound():
		assert.Equal(t, []byte("hello"), frame)
	default:
		t.Fatal("expected frame on b's inbound channel")
	}
}

func TestMemoryAdapterOfflineSendFails(t *testing.T) {
	a, _ := NewMemoryPair("a", "b")
	a.SetOnline(false)
	err := a.Send([]byte("x"))
	require.Error(t, err)
}
