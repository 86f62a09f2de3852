package resource

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

// LinkSender is the narrow surface a Sender needs from an active link: a
// context-tagged send. Kept as an interface (rather than importing
// *link.Link directly) so resource stays a leaf package the way link keeps
// its own Transport interface narrow.
type LinkSender interface {
	SendWithContext(ctx wire.Context, payload []byte) error
}

// Sender drives the originating half of a resource transfer (spec.md §4.8
// points 1, 3, 4, 5-validate).
type Sender struct {
	mu sync.Mutex

	link LinkSender

	resHash    [32]byte
	segments   [][]byte
	hashes     [][]byte
	compressed bool
	totalSize  int

	window       *Window
	firstRequest bool
	done         bool

	onCompleted func()
	onFailed    func(error)
}

// NewSender prepares data for transfer and immediately sends the ADV frame.
// rtt seeds the flow-control window (spec.md §4.8 "flow-control window").
func NewSender(l LinkSender, data []byte, rtt time.Duration, onCompleted func(), onFailed func(error)) (*Sender, error) {
	if len(data) > maxResourceSize() {
		return nil, rerrors.New(rerrors.ParseBadPayload)
	}

	payload, compressed, err := compress(data)
	if err != nil {
		// Compression failures fall back to the uncompressed form rather
		// than failing the whole transfer.
		payload, compressed = data, false
	}

	randomPrefix := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, randomPrefix); err != nil {
		return nil, err
	}

	segments := segment(payload)
	s := &Sender{
		link:         l,
		resHash:      resourceHash(data, randomPrefix),
		segments:     segments,
		hashes:       hashmap(segments),
		compressed:   compressed,
		totalSize:    len(data),
		window:       NewWindow(rtt),
		firstRequest: true,
		onCompleted:  onCompleted,
		onFailed:     onFailed,
	}

	adv := &advertisement{
		ResourceHash: s.resHash[:],
		TotalSize:    s.totalSize,
		Compressed:   s.compressed,
		PartCount:    len(segments),
		HashmapRoot:  s.hashes,
	}
	encoded, err := encodeAdvertisement(adv)
	if err != nil {
		return nil, err
	}
	if err := l.SendWithContext(wire.CtxResourceAdv, encoded); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleFrame processes an inbound REQ or PROOF addressed to this transfer.
// A consumer demultiplexes a link's received frames by context and routes
// CtxResourceReq/CtxResourcePrf here.
func (s *Sender) HandleFrame(ctx wire.Context, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	switch ctx {
	case wire.CtxResourceReq:
		s.handleRequest(payload)
	case wire.CtxResourcePrf:
		s.handleProof(payload)
	}
}

func (s *Sender) handleRequest(payload []byte) {
	req, err := decodeRequest(payload)
	if err != nil {
		log.WithError(err).Debug("dropping malformed resource REQ")
		return
	}

	// A REQ after the first is only sent because parts went missing
	// (spec.md §4.8 point 4): evidence of loss, so the window shrinks
	// before resending. The first REQ just echoes "send everything".
	if s.firstRequest {
		s.firstRequest = false
	} else {
		s.window.Shrink()
	}

	limit := s.window.Size()
	sent := 0
	for _, idx := range req.Wanted {
		if int(idx) >= len(s.segments) {
			continue
		}
		if sent >= limit {
			break
		}
		frame := make([]byte, 2+len(s.segments[idx]))
		binary.BigEndian.PutUint16(frame[:2], idx)
		copy(frame[2:], s.segments[idx])
		if err := s.link.SendWithContext(wire.CtxResource, frame); err != nil {
			log.WithError(err).Debug("failed to send resource part")
			return
		}
		sent++
	}

	// The whole requested batch fit in this window without needing a
	// second pass: no evidence of congestion, so grow for next time.
	if sent >= len(req.Wanted) {
		s.window.Grow()
	}
}

func (s *Sender) handleProof(payload []byte) {
	assembled := make([]byte, 0, s.totalSize)
	for _, seg := range s.segments {
		assembled = append(assembled, seg...)
	}
	if !verifyProof(payload, s.resHash, assembled) {
		s.done = true
		if s.onFailed != nil {
			s.onFailed(rerrors.New(rerrors.ProtocolResourceHashMismatch))
		}
		return
	}
	s.done = true
	if s.onCompleted != nil {
		s.onCompleted()
	}
}
