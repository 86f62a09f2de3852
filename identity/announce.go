package identity

import (
	"bytes"
	"crypto/rand"
	"io"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hash"
	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

const (
	nameHashSize   = 10
	randomHashSize = 10
	ratchetSize    = 32
	sigSize        = 64
)

// AnnouncedEntry is what a successfully validated announce contributes to
// the caller's known-destinations table (spec.md §4.3, §6.3). Persisting it
// is the caller's (transport/process) responsibility, not identity's.
type AnnouncedEntry struct {
	PacketHash      [32]byte
	DestinationHash [16]byte
	PublicKey       []byte // 64 bytes
	AppData         []byte
	Ratchet         *[32]byte
}

// BuildAnnouncePayload assembles the ANNOUNCE payload of spec.md §4.4/§6.1:
// public_key || name_hash || random_hash || [ratchet] || signature ||
// app_data, where signature covers destination_hash || public_key ||
// name_hash || random_hash || ratchet || app_data. It returns the payload
// bytes and the context-flag bit that signals ratchet presence.
func BuildAnnouncePayload(id *Identity, destinationHash [16]byte, nameHash [nameHashSize]byte, ratchet *[32]byte, appData []byte) (payload []byte, ratchetPresent bool, err error) {
	rh, err := randomHashN(randomHashSize)
	if err != nil {
		return nil, false, err
	}

	pub := id.PublicBytes()

	var ratchetBytes []byte
	if ratchet != nil {
		ratchetBytes = ratchet[:]
		ratchetPresent = true
	}

	signed := make([]byte, 0, 16+64+nameHashSize+randomHashSize+ratchetSize+len(appData))
	signed = append(signed, destinationHash[:]...)
	signed = append(signed, pub...)
	signed = append(signed, nameHash[:]...)
	signed = append(signed, rh...)
	signed = append(signed, ratchetBytes...)
	signed = append(signed, appData...)

	sig, err := id.Sign(signed)
	if err != nil {
		return nil, false, err
	}

	out := make([]byte, 0, len(signed)+sigSize)
	out = append(out, pub...)
	out = append(out, nameHash[:]...)
	out = append(out, rh...)
	out = append(out, ratchetBytes...)
	out = append(out, sig...)
	out = append(out, appData...)
	return out, ratchetPresent, nil
}

// ValidateAnnounce parses and verifies an ANNOUNCE packet per spec.md §4.3:
// reconstruct the signed region, verify the Ed25519-role signature,
// recompute the destination hash and reject mismatches.
func ValidateAnnounce(p *wire.Packet) (*AnnouncedEntry, error) {
	if p.PacketType != wire.TypeAnnounce {
		return nil, rerrors.New(rerrors.ParseBadPayload)
	}

	payload := p.Payload
	ratchetPresent := p.ContextFlag&0x1 == 1

	minLen := 64 + nameHashSize + randomHashSize + sigSize
	if ratchetPresent {
		minLen += ratchetSize
	}
	if len(payload) < minLen {
		return nil, rerrors.New(rerrors.ParseTooShort)
	}

	off := 0
	pub := payload[off : off+64]
	off += 64
	nameHashGot := payload[off : off+nameHashSize]
	off += nameHashSize
	randomHashGot := payload[off : off+randomHashSize]
	off += randomHashSize

	var ratchetBytes []byte
	var ratchetPtr *[32]byte
	if ratchetPresent {
		ratchetBytes = payload[off : off+ratchetSize]
		off += ratchetSize
		var r [32]byte
		copy(r[:], ratchetBytes)
		ratchetPtr = &r
	}

	sig := payload[off : off+sigSize]
	off += sigSize
	appData := append([]byte(nil), payload[off:]...)

	signed := make([]byte, 0, 16+len(pub)+nameHashSize+randomHashSize+len(ratchetBytes)+len(appData))
	signed = append(signed, p.DestinationHash[:]...)
	signed = append(signed, pub...)
	signed = append(signed, nameHashGot...)
	signed = append(signed, randomHashGot...)
	signed = append(signed, ratchetBytes...)
	signed = append(signed, appData...)

	announcer, err := FromPublicBytes(pub)
	if err != nil {
		return nil, err
	}
	if !announcer.Verify(sig, signed) {
		return nil, rerrors.New(rerrors.CryptoBadSignature)
	}

	var nameHashArr [nameHashSize]byte
	copy(nameHashArr[:], nameHashGot)
	idHash := announcer.Hash()
	wantDest := hash.Trunc16(append(append([]byte{}, nameHashArr[:]...), idHash[:]...))
	if !bytes.Equal(wantDest[:], p.DestinationHash[:]) {
		return nil, rerrors.New(rerrors.ParseBadPayload)
	}

	ph := p.Hash()
	return &AnnouncedEntry{
		PacketHash:      ph,
		DestinationHash: p.DestinationHash,
		PublicKey:       append([]byte(nil), pub...),
		AppData:         appData,
		Ratchet:         ratchetPtr,
	}, nil
}

func randomHashN(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
