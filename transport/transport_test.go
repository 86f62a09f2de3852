package transport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torlando-tech/reticulum-kt-sub003/destination"
	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/iface"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

func newTestTransport(t *testing.T) (*Transport, *iface.MemoryAdapter, *iface.MemoryAdapter) {
	t.Helper()
	a, b := iface.NewMemoryPair("a", "b")
	tr := New(Config{})
	tr.RegisterInterface(a)
	tr.RegisterInterface(b)
	return tr, a, b
}

// Invariant 4: a path is only replaced by a strictly better candidate
// (fewer hops, or equal hops with a fresher timestamp).
func TestPathTableReplacesOnlyWhenStrictlyBetter(t *testing.T) {
	pt := newPathTable()
	now := time.Now()

	var dest [16]byte
	dest[0] = 0xAA

	ok := pt.Offer(dest, &PathEntry{NextHopInterface: "a", Hops: 3, LatestAnnounceAt: now}, now)
	require.True(t, ok)

	worse := pt.Offer(dest, &PathEntry{NextHopInterface: "b", Hops: 5, LatestAnnounceAt: now.Add(time.Second)}, now)
	assert.False(t, worse)
	entry, _ := pt.Get(dest)
	assert.Equal(t, "a", entry.NextHopInterface)

	better := pt.Offer(dest, &PathEntry{NextHopInterface: "b", Hops: 2, LatestAnnounceAt: now.Add(time.Second)}, now)
	assert.True(t, better)
	entry, _ = pt.Get(dest)
	assert.Equal(t, "b", entry.NextHopInterface)
}

// S6: a re-received duplicate announce (identical packet hash) must not be
// dispatched twice or re-propagated.
func TestDuplicateAnnounceSuppressed(t *testing.T) {
	tr, _, b := newTestTransport(t)

	owner, err := identity.Create()
	require.NoError(t, err)
	d := destination.New(owner, destination.In, destination.Single, "app", []string{"aspect"})

	announce, err := d.BuildAnnounce([]byte("hello"), nil)
	require.NoError(t, err)
	raw := announce.Encode()

	tr.Ingest("a", raw)
	assert.Equal(t, 1, tr.dedup.Len())

	select {
	case <-b.Inbound():
	case <-time.After(10 * time.Millisecond):
	}

	tr.Ingest("a", raw)
	assert.Equal(t, 1, tr.dedup.Len(), "duplicate must not be inserted again")
}

// S7: ProveAll strategy causes handleData to emit a PROOF back on the
// inbound interface.
func TestProveAllEmitsProof(t *testing.T) {
	// Only "a" is registered: a registered "b" would start an inbound pump
	// that drains the PROOF off b's channel before the test can read it.
	a, b := iface.NewMemoryPair("a", "b")
	tr := New(Config{})
	tr.RegisterInterface(a)

	owner, err := identity.Create()
	require.NoError(t, err)
	d := destination.New(owner, destination.In, destination.Single, "app", nil)
	d.Strategy = destination.ProveAll
	tr.RegisterDestination(d)

	destHash := d.Hash()
	p := &wire.Packet{
		HeaderType:      wire.Header1,
		DestType:        wire.DestSingle,
		PacketType:      wire.TypeData,
		DestinationHash: destHash,
		Context:         wire.CtxNone,
		Payload:         []byte("payload"),
	}

	tr.Ingest("a", p.Encode())

	select {
	case proofRaw := <-b.Inbound():
		proof, err := wire.Decode(proofRaw)
		require.NoError(t, err)
		assert.Equal(t, wire.TypeProof, proof.PacketType)
		assert.Equal(t, destHash, proof.DestinationHash)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected a PROOF frame to be emitted")
	}
}

func TestKnownDestinationsPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "known_destinations")

	tr := New(Config{StatePath: statePath})
	owner, err := identity.Create()
	require.NoError(t, err)
	d := destination.New(owner, destination.In, destination.Single, "app", nil)

	announce, err := d.BuildAnnounce(nil, nil)
	require.NoError(t, err)

	a, _ := iface.NewMemoryPair("a", "b")
	tr.RegisterInterface(a)
	tr.Ingest("a", announce.Encode())
	tr.persist()

	loaded, err := LoadKnownDestinations(statePath)
	require.NoError(t, err)
	rec, ok := loaded[d.Hash()]
	require.True(t, ok)
	assert.NotZero(t, rec.TimestampMs)
}

func TestAnnouncePropagatesToOtherInterfaces(t *testing.T) {
	a, b := iface.NewMemoryPair("a", "b")
	c, d := iface.NewMemoryPair("c", "d")
	tr := New(Config{})
	tr.RegisterInterface(a)
	tr.RegisterInterface(c)

	owner, err := identity.Create()
	require.NoError(t, err)
	dest := destination.New(owner, destination.In, destination.Single, "app", nil)
	announce, err := dest.BuildAnnounce(nil, nil)
	require.NoError(t, err)

	tr.Ingest("a", announce.Encode())
	tr.runMaintenance(time.Now())

	select {
	case <-c.Inbound():
		t.Fatal("announce should propagate from 'a' to 'c', not be received back on 'c' itself")
	case <-time.After(5 * time.Millisecond):
	}

	select {
	case fwd := <-d.Inbound():
		p, err := wire.Decode(fwd)
		require.NoError(t, err)
		assert.Equal(t, wire.TypeAnnounce, p.PacketType)
		assert.Equal(t, uint8(1), p.Hops)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the announce forwarded onto interface c's peer")
	}

	_ = b
}
