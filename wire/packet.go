// Package wire implements the bit-exact packet codec of spec.md §6.1: the
// two header variants, the flags bitfield, and the packet hash used for
// deduplication and proof correlation. Grounded on the teacher's
// common.MessageBundle framing idiom (minimal-signal/common/types.go),
// reworked from a JSON envelope into the byte-exact binary layout the
// protocol requires.
package wire

import (
	"crypto/sha256"

	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
)

// HeaderType selects between the 19-byte and 35-byte header layouts.
type HeaderType uint8

const (
	Header1 HeaderType = 0 // no transport_id, single-hop framing
	Header2 HeaderType = 1 // includes a 16-byte transport_id, multi-hop framing
)

// PropagationType distinguishes locally-originated broadcast from
// router-relayed transport.
type PropagationType uint8

const (
	Broadcast  PropagationType = 0
	Transport  PropagationType = 1
)

// DestinationType is the 2-bit destination type field.
type DestinationType uint8

const (
	DestSingle DestinationType = 0
	DestGroup  DestinationType = 1
	DestPlain  DestinationType = 2
	DestLink   DestinationType = 3
)

// PacketType is the 2-bit packet type field.
type PacketType uint8

const (
	TypeData        PacketType = 0
	TypeAnnounce    PacketType = 1
	TypeLinkRequest PacketType = 2
	TypeProof       PacketType = 3
)

// Context is the one-byte context enum following the address fields.
type Context uint8

const (
	CtxNone         Context = 0x00
	CtxResource     Context = 0x01
	CtxResourceAdv  Context = 0x02
	CtxResourceReq  Context = 0x03
	CtxResourcePrf  Context = 0x04
	CtxLinkProof    Context = 0x05
	CtxLinkClose    Context = 0x06
	CtxKeepalive    Context = 0x07
	CtxCacheRequest Context = 0x08
	CtxRequest      Context = 0x09
	CtxResponse     Context = 0x0A
	CtxPathResponse Context = 0x0B
	CtxCommand      Context = 0x0C
	CtxChannel      Context = 0x0D
	CtxLinkIdentify Context = 0x0E
)

const (
	DestHashSize    = 16
	TransportIDSize = 16

	minHeader1Len = 1 + 1 + DestHashSize + 1                   // flags, hops, dest_hash, context
	minHeader2Len = 1 + 1 + DestHashSize + TransportIDSize + 1 // + transport_id
)

// Packet is the fully decoded logical form of a wire packet (spec.md §3).
type Packet struct {
	HeaderType      HeaderType
	PropagationType PropagationType
	DestType        DestinationType
	PacketType      PacketType
	ContextFlag     uint8 // bits 1-0 of byte 0; application-specific (e.g. ratchet present)
	Hops            uint8
	TransportID     [TransportIDSize]byte // only meaningful when HeaderType == Header2
	DestinationHash [DestHashSize]byte
	Context         Context
	Payload         []byte
}

// Encode serializes p into its wire representation.
func (p *Packet) Encode() []byte {
	flags := byte(p.HeaderType&1)<<7 |
		byte(p.PropagationType&1)<<6 |
		byte(p.DestType&0x3)<<4 |
		byte(p.PacketType&0x3)<<2 |
		byte(p.ContextFlag&0x3)

	size := minHeader1Len
	if p.HeaderType == Header2 {
		size = minHeader2Len
	}
	size += len(p.Payload)

	out := make([]byte, 0, size)
	out = append(out, flags, p.Hops)
	out = append(out, p.DestinationHash[:]...)
	if p.HeaderType == Header2 {
		out = append(out, p.TransportID[:]...)
	}
	out = append(out, byte(p.Context))
	out = append(out, p.Payload...)
	return out
}

// Decode parses raw bytes into a Packet, enforcing the minimum-length
// invariants of spec.md §4.2.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < minHeader1Len {
		return nil, rerrors.New(rerrors.ParseTooShort)
	}

	flags := raw[0]
	headerType := HeaderType((flags >> 7) & 1)

	minLen := minHeader1Len
	if headerType == Header2 {
		minLen = minHeader2Len
	}
	if len(raw) < minLen {
		return nil, rerrors.New(rerrors.ParseTooShort)
	}

	p := &Packet{
		HeaderType:      headerType,
		PropagationType: PropagationType((flags >> 6) & 1),
		DestType:        DestinationType((flags >> 4) & 0x3),
		PacketType:      PacketType((flags >> 2) & 0x3),
		ContextFlag:     flags & 0x3,
		Hops:            raw[1],
	}

	off := 2
	copy(p.DestinationHash[:], raw[off:off+DestHashSize])
	off += DestHashSize

	if headerType == Header2 {
		copy(p.TransportID[:], raw[off:off+TransportIDSize])
		off += TransportIDSize
	}

	p.Context = Context(raw[off])
	off++

	p.Payload = append([]byte(nil), raw[off:]...)
	return p, nil
}

// Hash computes the packet hash: SHA-256 over the hop-invariant,
// transport-id-excluding canonical form (spec.md §3, §4.2). It is stable
// under forwarding, which only mutates Hops and, for variant 2, TransportID.
func (p *Packet) Hash() [32]byte {
	flags := byte(p.HeaderType&1)<<7 |
		byte(p.PropagationType&1)<<6 |
		byte(p.DestType&0x3)<<4 |
		byte(p.PacketType&0x3)<<2 |
		byte(p.ContextFlag&0x3)

	buf := make([]byte, 0, 2+DestHashSize+1+len(p.Payload))
	buf = append(buf, flags, 0) // hops zeroed
	buf = append(buf, p.DestinationHash[:]...)
	buf = append(buf, byte(p.Context))
	buf = append(buf, p.Payload...)
	return sha256.Sum256(buf)
}

// TruncHash returns the first 16 bytes of Hash, the receipt/proof
// correlation key.
func (p *Packet) TruncHash() [16]byte {
	full := p.Hash()
	var out [16]byte
	copy(out[:], full[:16])
	return out
}
