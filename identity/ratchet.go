package identity

import (
	"sync"
	"time"
)

// DefaultRatchetTTL is the 30-day pruning window from spec.md §3.
const DefaultRatchetTTL = 30 * 24 * time.Hour

type ratchetEntry struct {
	key        [32]byte
	receivedAt time.Time
}

// RatchetStore holds per-destination ratchet public keys, newest first,
// pruned after DefaultRatchetTTL (spec.md §3 "Ratchet"). Safe for concurrent
// use; callers (transport maintenance) invoke Prune periodically.
type RatchetStore struct {
	mu     sync.Mutex
	byDest map[[16]byte][]ratchetEntry
	ttl    time.Duration
}

// NewRatchetStore constructs an empty store with the default TTL.
func NewRatchetStore() *RatchetStore {
	return &RatchetStore{
		byDest: make(map[[16]byte][]ratchetEntry),
		ttl:    DefaultRatchetTTL,
	}
}

// Add records a newly announced ratchet for destHash, inserted at the front
// (newest first).
func (s *RatchetStore) Add(destHash [16]byte, key [32]byte, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := ratchetEntry{key: key, receivedAt: now}
	s.byDest[destHash] = append([]ratchetEntry{entry}, s.byDest[destHash]...)
}

// For returns the stored ratchet keys for destHash, newest first.
func (s *RatchetStore) For(destHash [16]byte) []([32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.byDest[destHash]
	out := make([][32]byte, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// Prune removes ratchets older than the TTL, relative to now.
func (s *RatchetStore) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for dest, entries := range s.byDest {
		kept := entries[:0]
		for _, e := range entries {
			if now.Sub(e.receivedAt) <= s.ttl {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.byDest, dest)
		} else {
			s.byDest[dest] = kept
		}
	}
}
