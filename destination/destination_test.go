package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

func TestHashDeterministicForSingle(t *testing.T) {
	id, err := identity.Create()
	require.NoError(t, err)

	d1 := New(id, In, Single, "test", []string{"a"})
	d2 := New(id, In, Single, "test", []string{"a"})
	assert.Equal(t, d1.Hash(), d2.Hash())

	d3 := New(id, In, Single, "test", []string{"b"})
	assert.NotEqual(t, d1.Hash(), d3.Hash())
}

func TestShouldProveStrategies(t *testing.T) {
	id, err := identity.Create()
	require.NoError(t, err)
	d := New(id, In, Single, "test", nil)

	var p *wire.Packet

	d.Strategy = ProveNone
	assert.False(t, d.ShouldProve(p))

	d.Strategy = ProveAll
	assert.True(t, d.ShouldProve(p))

	d.Strategy = ProveApp
	d.ProveApp = func(p *wire.Packet) bool { return true }
	assert.True(t, d.ShouldProve(p))
}

func TestBuildAnnounceRoundTrip(t *testing.T) {
	id, err := identity.Create()
	require.NoError(t, err)
	d := New(id, In, Single, "test", []string{"a"})

	packet, err := d.BuildAnnounce([]byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeAnnounce, packet.PacketType)
	assert.Equal(t, d.Hash(), packet.DestinationHash)

	entry, err := identity.ValidateAnnounce(packet)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), entry.AppData)
}
