package resource

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hash"
	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

// Receiver drives the accepting half of a resource transfer (spec.md §4.8
// points 2, 3-accept, 4, 5-conclude).
type Receiver struct {
	mu sync.Mutex

	link LinkSender

	resHash    [32]byte
	totalSize  int
	compressed bool
	partCount  int
	hashes     [][]byte

	received     map[uint16][]byte
	lastActivity time.Time
	retransmit   time.Duration

	started bool
	done    bool

	onConcluded func(data []byte)
	onFailed    func(error)
}

// NewReceiver prepares to accept a resource transfer announced on a link.
// retransmitTimeout is the gap-driven REQ resend interval of spec.md §4.8
// point 4 ("a function of RTT"); callers derive it from the link's RTT
// estimate the same way Sender derives its window from it.
func NewReceiver(l LinkSender, retransmitTimeout time.Duration, onConcluded func(data []byte), onFailed func(error)) *Receiver {
	return &Receiver{
		link:        l,
		retransmit:  retransmitTimeout,
		onConcluded: onConcluded,
		onFailed:    onFailed,
	}
}

// HandleFrame processes an inbound ADV or PART addressed to this transfer.
func (r *Receiver) HandleFrame(ctx wire.Context, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}

	switch ctx {
	case wire.CtxResourceAdv:
		r.handleAdvertisement(payload)
	case wire.CtxResource:
		r.handlePart(payload)
	}
}

func (r *Receiver) handleAdvertisement(payload []byte) {
	if r.started {
		return // duplicate ADV; ignore
	}
	adv, err := decodeAdvertisement(payload)
	if err != nil {
		log.WithError(err).Debug("dropping malformed resource ADV")
		return
	}
	if adv.TotalSize > maxResourceSize() {
		r.done = true
		if r.onFailed != nil {
			r.onFailed(rerrors.New(rerrors.ParseBadPayload))
		}
		return
	}

	copy(r.resHash[:], adv.ResourceHash)
	r.totalSize = adv.TotalSize
	r.compressed = adv.Compressed
	r.partCount = adv.PartCount
	r.hashes = adv.HashmapRoot
	r.received = make(map[uint16][]byte, adv.PartCount)
	r.started = true
	r.lastActivity = time.Now()

	r.sendRequestLocked(r.missingLocked())
}

func (r *Receiver) handlePart(payload []byte) {
	if !r.started || len(payload) < 2 {
		return
	}
	idx := binary.BigEndian.Uint16(payload[:2])
	if int(idx) >= r.partCount {
		return
	}
	seg := append([]byte(nil), payload[2:]...)
	if int(idx) < len(r.hashes) {
		want := r.hashes[idx]
		got := segmentHash(seg)
		if !bytesEqual(got, want) {
			log.WithField("part", idx).Debug("dropping resource part: hash mismatch")
			return
		}
	}
	r.received[idx] = seg
	r.lastActivity = time.Now()

	if len(r.received) == r.partCount {
		r.concludeLocked()
	}
}

// CheckTimeout resends a REQ naming only the still-missing parts if the
// retransmit interval has elapsed since the last received PART (spec.md
// §4.8 point 4). Callers (process maintenance) invoke this periodically.
func (r *Receiver) CheckTimeout(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || !r.started {
		return
	}
	if now.Sub(r.lastActivity) < r.retransmit {
		return
	}
	missing := r.missingLocked()
	if len(missing) == 0 {
		return
	}
	r.lastActivity = now
	r.sendRequestLocked(missing)
}

func (r *Receiver) missingLocked() []uint16 {
	missing := make([]uint16, 0, r.partCount-len(r.received))
	for i := 0; i < r.partCount; i++ {
		if _, ok := r.received[uint16(i)]; !ok {
			missing = append(missing, uint16(i))
		}
	}
	return missing
}

func (r *Receiver) sendRequestLocked(wanted []uint16) {
	encoded, err := encodeRequest(&request{Wanted: wanted})
	if err != nil {
		return
	}
	_ = r.link.SendWithContext(wire.CtxResourceReq, encoded)
}

func (r *Receiver) concludeLocked() {
	assembled := make([]byte, 0, r.totalSize)
	for i := 0; i < r.partCount; i++ {
		assembled = append(assembled, r.received[uint16(i)]...)
	}

	proof := buildProof(r.resHash, assembled)
	_ = r.link.SendWithContext(wire.CtxResourcePrf, proof)

	r.done = true

	payload := assembled
	if r.compressed {
		plain, err := decompress(assembled)
		if err != nil {
			if r.onFailed != nil {
				r.onFailed(rerrors.Wrap(rerrors.ParseBadPayload, err))
			}
			return
		}
		payload = plain
	}
	if r.onConcluded != nil {
		r.onConcluded(payload)
	}
}

func segmentHash(seg []byte) []byte {
	h := hash.Trunc16(seg)
	return h[:]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
