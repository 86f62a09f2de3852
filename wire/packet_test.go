package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDestHash(b byte) [DestHashSize]byte {
	var h [DestHashSize]byte
	for i := range h {
		h[i] = b
	}
	return h
}

func TestEncodeDecodeRoundTripHeader1(t *testing.T) {
	p := &Packet{
		HeaderType:      Header1,
		PropagationType: Broadcast,
		DestType:        DestSingle,
		PacketType:      TypeData,
		ContextFlag:     0,
		Hops:            3,
		DestinationHash: makeDestHash(0xAB),
		Context:         CtxNone,
		Payload:         []byte("ping"),
	}

	raw := p.Encode()
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestEncodeDecodeRoundTripHeader2(t *testing.T) {
	p := &Packet{
		HeaderType:      Header2,
		PropagationType: Transport,
		DestType:        DestLink,
		PacketType:      TypeAnnounce,
		ContextFlag:     1,
		Hops:            7,
		TransportID:     makeDestHash(0xCD),
		DestinationHash: makeDestHash(0xEF),
		Context:         CtxLinkProof,
		Payload:         []byte{1, 2, 3, 4, 5},
	}

	raw := p.Encode()
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeTooShortHeader1(t *testing.T) {
	_, err := Decode(make([]byte, minHeader1Len-1))
	require.Error(t, err)
}

func TestDecodeTooShortHeader2(t *testing.T) {
	raw := make([]byte, minHeader2Len-1)
	raw[0] = 1 << 7 // header type 2
	_, err := Decode(raw)
	require.Error(t, err)
}

// Hash is stable under forwarding: only Hops (and for header2, TransportID)
// may change between hops, never the hash.
func TestHashStableAcrossForwarding(t *testing.T) {
	p := &Packet{
		HeaderType:      Header1,
		DestType:        DestSingle,
		PacketType:      TypeData,
		Hops:            0,
		DestinationHash: makeDestHash(0x11),
		Context:         CtxNone,
		Payload:         []byte("hello"),
	}
	h1 := p.Hash()

	forwarded := *p
	forwarded.Hops = 5
	h2 := forwarded.Hash()

	assert.Equal(t, h1, h2)
}

func TestHashDiffersOnPayload(t *testing.T) {
	p1 := &Packet{DestinationHash: makeDestHash(1), Payload: []byte("a")}
	p2 := &Packet{DestinationHash: makeDestHash(1), Payload: []byte("b")}
	assert.NotEqual(t, p1.Hash(), p2.Hash())
}
