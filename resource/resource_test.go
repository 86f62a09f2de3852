package resource

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

// fakeLink buffers outgoing frames instead of dispatching them immediately,
// so a test can pump sender and receiver alternately without recursing
// through each other's constructors.
type fakeLink struct {
	out []fakeFrame
}

type fakeFrame struct {
	ctx     wire.Context
	payload []byte
}

func (f *fakeLink) SendWithContext(ctx wire.Context, payload []byte) error {
	f.out = append(f.out, fakeFrame{ctx, payload})
	return nil
}

type frameHandler interface {
	HandleFrame(ctx wire.Context, payload []byte)
}

// pump alternately drains a's and b's buffered frames into the opposite
// side's handler until both go quiet or the round cap is hit.
func pump(t *testing.T, aLink *fakeLink, aHandler frameHandler, bLink *fakeLink, bHandler frameHandler) {
	t.Helper()
	for round := 0; round < 50; round++ {
		if len(aLink.out) == 0 && len(bLink.out) == 0 {
			return
		}
		pending := aLink.out
		aLink.out = nil
		for _, f := range pending {
			bHandler.HandleFrame(f.ctx, f.payload)
		}
		pending = bLink.out
		bLink.out = nil
		for _, f := range pending {
			aHandler.HandleFrame(f.ctx, f.payload)
		}
	}
	t.Fatal("pump did not quiesce within round cap")
}

// A compressible transfer round-trips through ADV/REQ/PART/PROOF and
// reassembles exactly.
func TestTransferRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("reticulum-resource-transfer-"), 1000) // several segments uncompressed; BZ2 shrinks it to one part

	senderLink := &fakeLink{}
	receiverLink := &fakeLink{}

	var concluded []byte
	var concludedErr error
	receiver := NewReceiver(receiverLink, 50*time.Millisecond, func(data []byte) { concluded = data }, func(e error) { concludedErr = e })

	var completed bool
	var sendErr error
	sender, err := NewSender(senderLink, payload, 20*time.Millisecond, func() { completed = true }, func(e error) { sendErr = e })
	require.NoError(t, err)

	pump(t, senderLink, receiver, receiverLink, sender)

	require.NoError(t, concludedErr)
	require.NoError(t, sendErr)
	assert.True(t, completed, "sender should see the transfer complete")
	assert.Equal(t, payload, concluded, "receiver should reassemble the exact original payload")
}

// A short payload that doesn't compress is sent uncompressed and still
// round-trips.
func TestTransferUncompressible(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	senderLink := &fakeLink{}
	receiverLink := &fakeLink{}

	var concluded []byte
	receiver := NewReceiver(receiverLink, 50*time.Millisecond, func(data []byte) { concluded = data }, nil)
	sender, err := NewSender(senderLink, payload, 20*time.Millisecond, nil, nil)
	require.NoError(t, err)

	pump(t, senderLink, receiver, receiverLink, sender)

	assert.Equal(t, payload, concluded)
}

func TestCompressStrictlyReducesOrFallsBack(t *testing.T) {
	compressible := bytes.Repeat([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 500)
	out, compressed, err := compress(compressible)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(out), len(compressible))

	tiny := []byte("x")
	out2, compressed2, err := compress(tiny)
	require.NoError(t, err)
	assert.False(t, compressed2)
	assert.Equal(t, tiny, out2)
}

func TestHashmapDetectsCorruptPart(t *testing.T) {
	segs := segment([]byte(strings.Repeat("segment-data-", 500)))
	require.Greater(t, len(segs), 1)
	hashes := hashmap(segs)

	got := segmentHash(segs[0])
	assert.True(t, bytesEqual(got, hashes[0]))

	corrupted := append([]byte(nil), segs[0]...)
	corrupted[0] ^= 0xFF
	assert.False(t, bytesEqual(segmentHash(corrupted), hashes[0]))
}

func TestWindowGrowsAndShrinks(t *testing.T) {
	w := NewWindow(10 * time.Millisecond)
	initial := w.Size()

	w.Grow()
	assert.Equal(t, initial+1, w.Size())

	for i := 0; i < 20; i++ {
		w.Shrink()
	}
	assert.Equal(t, defaultWindowMin, w.Size())

	for i := 0; i < 200; i++ {
		w.Grow()
	}
	assert.Equal(t, defaultWindowMax, w.Size())
}
