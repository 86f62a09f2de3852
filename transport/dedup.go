package transport

import "time"

// DedupRing is the bounded packet-hash seen-set of spec.md §3/§4.6. The
// default implementation is in-memory; RedisDedup (redis_dedup.go) is an
// alternate backend for multi-process gateway deployments sharing one
// horizon.
type DedupRing interface {
	// SeenOrInsert returns true if hash was already present; otherwise it
	// inserts it (with firstSeen) and returns false.
	SeenOrInsert(hash [32]byte, firstSeen time.Time) bool
	Len() int
}

// memoryDedupRing is a capacity-bounded map with FIFO eviction, the default
// backend (spec.md §3 "Deduplication ring").
type memoryDedupRing struct {
	capacity int
	seen     map[[32]byte]time.Time
	order    [][32]byte // insertion order, for FIFO eviction
}

func newMemoryDedupRing(capacity int) *memoryDedupRing {
	if capacity < 1 {
		capacity = 1
	}
	return &memoryDedupRing{
		capacity: capacity,
		seen:     make(map[[32]byte]time.Time, capacity),
	}
}

func (r *memoryDedupRing) SeenOrInsert(hash [32]byte, firstSeen time.Time) bool {
	if _, ok := r.seen[hash]; ok {
		return true
	}
	if len(r.order) >= r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
	r.seen[hash] = firstSeen
	r.order = append(r.order, hash)
	return false
}

func (r *memoryDedupRing) Len() int { return len(r.seen) }
