package transport

import "time"

// ReverseEntry lets a LRPROOF be routed back along the path its LINKREQUEST
// arrived without a fresh path-table lookup (spec.md §3 "Reverse entry").
type ReverseEntry struct {
	InboundInterface  string
	OutboundInterface string
	Timestamp         time.Time
}

type reverseTable struct {
	byPacketHash map[[32]byte]*ReverseEntry
}

func newReverseTable() *reverseTable {
	return &reverseTable{byPacketHash: make(map[[32]byte]*ReverseEntry)}
}

func (t *reverseTable) Record(packetHash [32]byte, entry *ReverseEntry) {
	t.byPacketHash[packetHash] = entry
}

func (t *reverseTable) Lookup(packetHash [32]byte) (*ReverseEntry, bool) {
	e, ok := t.byPacketHash[packetHash]
	return e, ok
}

func (t *reverseTable) Delete(packetHash [32]byte) {
	delete(t.byPacketHash, packetHash)
}

// Cull drops reverse entries older than maxAge; these are only needed for
// the brief window between forwarding a LINKREQUEST and seeing its LRPROOF.
func (t *reverseTable) Cull(now time.Time, maxAge time.Duration) {
	for k, e := range t.byPacketHash {
		if now.Sub(e.Timestamp) > maxAge {
			delete(t.byPacketHash, k)
		}
	}
}
