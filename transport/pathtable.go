package transport

import (
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/iface"
)

// PathEntry is the router's best-known next hop for a destination (spec.md
// §3 "Path entry").
type PathEntry struct {
	NextHopInterface    string
	NextHopTransportID  [16]byte
	Hops                uint8
	ExpiresAt           time.Time
	LatestAnnounce      []byte
	LatestAnnounceAt    time.Time
	PublicKey           []byte
	interfaceBitrate    int64 // inbound interface's bitrate; chooseInterface reads adapters' Bitrate instead
}

// pathTable stores one best entry per destination hash with the
// replace-only-if-strictly-better semantics of spec.md §3/§4.6 invariant 4.
type pathTable struct {
	entries map[[16]byte]*PathEntry
}

func newPathTable() *pathTable {
	return &pathTable{entries: make(map[[16]byte]*PathEntry)}
}

// Offer proposes a new path for destHash. It is accepted (and replaces any
// existing entry) only if (newHops, -newTs) < (oldHops, -oldTs) and the
// public key agrees with any stored one, matching spec.md's tie-break:
// prefer fewer hops, then fresher timestamp. Equal (hops, ts) pairs keep the
// existing entry (stable interface ordering is left to the caller, which
// chooses which interface to offer from first).
func (t *pathTable) Offer(destHash [16]byte, candidate *PathEntry, now time.Time) bool {
	existing, ok := t.entries[destHash]
	if !ok {
		candidate.ExpiresAt = now.Add(pathTTL())
		t.entries[destHash] = candidate
		return true
	}

	if len(existing.PublicKey) > 0 && len(candidate.PublicKey) > 0 &&
		string(existing.PublicKey) != string(candidate.PublicKey) {
		return false
	}

	better := candidate.Hops < existing.Hops ||
		(candidate.Hops == existing.Hops && candidate.LatestAnnounceAt.After(existing.LatestAnnounceAt))
	if !better {
		return false
	}

	candidate.ExpiresAt = now.Add(pathTTL())
	t.entries[destHash] = candidate
	return true
}

func (t *pathTable) Get(destHash [16]byte) (*PathEntry, bool) {
	e, ok := t.entries[destHash]
	return e, ok
}

// Cull removes entries whose ExpiresAt has passed.
func (t *pathTable) Cull(now time.Time) {
	for k, e := range t.entries {
		if now.After(e.ExpiresAt) {
			delete(t.entries, k)
		}
	}
}

func (t *pathTable) Len() int { return len(t.entries) }

// Snapshot returns a copy of every destination hash currently in the table
// mapped to its path entry, for read-only diagnostics (internal/monitor).
func (t *pathTable) Snapshot() map[[16]byte]PathEntry {
	out := make(map[[16]byte]PathEntry, len(t.entries))
	for k, e := range t.entries {
		out[k] = *e
	}
	return out
}

// chooseInterface implements the tie-break of spec.md §4.6: prefer the
// most-recently-used interface, then higher bitrate, then stable
// lexicographic interface id order. lastUsed maps interface id to its last
// send time.
func chooseInterface(candidates []iface.Adapter, lastUsed map[string]time.Time) iface.Adapter {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best, lastUsed) {
			best = c
		}
	}
	return best
}

func better(a, b iface.Adapter, lastUsed map[string]time.Time) bool {
	au, bu := lastUsed[a.ID()], lastUsed[b.ID()]
	if au.After(bu) {
		return true
	}
	if bu.After(au) {
		return false
	}
	if a.Bitrate() != b.Bitrate() {
		return a.Bitrate() > b.Bitrate()
	}
	return a.ID() < b.ID()
}
