package transport

import (
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/configs"
)

// announceQueueEntry is one pending retransmission (spec.md §3 "Announce
// queue entry").
type announceQueueEntry struct {
	destHash     [16]byte
	packetBytes  []byte
	receivedOn   string // "" if locally originated
	arrivalTime  time.Time
	hops         uint8
	retransmitAt time.Time
}

// tokenBucket enforces the rolling bandwidth cap of spec.md §4.6/§9: a
// target rate with bursts up to AnnounceBurstMultiplier times steady state.
type tokenBucket struct {
	capacityBytes float64
	tokens        float64
	refillPerSec  float64
	last          time.Time
}

func newTokenBucket(bitrate int64, now time.Time) *tokenBucket {
	rate := float64(bitrate) / 8.0 * configs.AnnounceBandwidthCapFraction
	return &tokenBucket{
		capacityBytes: rate * configs.AnnounceBurstMultiplier,
		tokens:        rate * configs.AnnounceBurstMultiplier,
		refillPerSec:  rate,
		last:          now,
	}
}

func (b *tokenBucket) allow(costBytes float64, now time.Time) bool {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillPerSec
		if b.tokens > b.capacityBytes {
			b.tokens = b.capacityBytes
		}
		b.last = now
	}
	if b.tokens >= costBytes {
		b.tokens -= costBytes
		return true
	}
	return false
}

// ifaceAnnounceQueue is one interface's FIFO retransmit queue plus its
// token bucket.
type ifaceAnnounceQueue struct {
	items  []*announceQueueEntry
	bucket *tokenBucket
}

// announceQueue holds one ifaceAnnounceQueue per outgoing interface.
type announceQueue struct {
	perInterface map[string]*ifaceAnnounceQueue
	maxPerIface  int
}

func newAnnounceQueue() *announceQueue {
	return &announceQueue{
		perInterface: make(map[string]*ifaceAnnounceQueue),
		maxPerIface:  4096,
	}
}

func (q *announceQueue) queueFor(ifaceID string, bitrate int64, now time.Time) *ifaceAnnounceQueue {
	iq, ok := q.perInterface[ifaceID]
	if !ok {
		iq = &ifaceAnnounceQueue{bucket: newTokenBucket(bitrate, now)}
		q.perInterface[ifaceID] = iq
	}
	return iq
}

// Enqueue admits entry onto ifaceID's queue. Returns false (drop, caller
// logs) if the queue is saturated.
func (q *announceQueue) Enqueue(ifaceID string, bitrate int64, entry *announceQueueEntry, now time.Time) bool {
	iq := q.queueFor(ifaceID, bitrate, now)
	if len(iq.items) >= q.maxPerIface {
		return false
	}
	iq.items = append(iq.items, entry)
	return true
}

// Drain pops as many FIFO-ordered entries off ifaceID's queue as its token
// bucket currently allows, returning them for transmission.
func (q *announceQueue) Drain(ifaceID string, bitrate int64, now time.Time) []*announceQueueEntry {
	iq := q.queueFor(ifaceID, bitrate, now)
	var sent []*announceQueueEntry
	for len(iq.items) > 0 {
		next := iq.items[0]
		cost := float64(len(next.packetBytes))
		if !iq.bucket.allow(cost, now) {
			break
		}
		sent = append(sent, next)
		iq.items = iq.items[1:]
	}
	return sent
}

func (q *announceQueue) Len(ifaceID string) int {
	iq, ok := q.perInterface[ifaceID]
	if !ok {
		return 0
	}
	return len(iq.items)
}

// TotalLen sums queued entries across every interface, for read-only
// diagnostics (internal/monitor).
func (q *announceQueue) TotalLen() int {
	total := 0
	for _, iq := range q.perInterface {
		total += len(iq.items)
	}
	return total
}
