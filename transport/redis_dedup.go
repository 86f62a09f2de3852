package transport

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup is an alternate DedupRing backend for gateway-mode deployments
// where several transport processes behind one shared interface need a
// common dedup horizon (spec.md §3 notes the ring is "interface-scoped";
// sharing it across processes is a deployment choice, not a spec
// requirement). Grounded on the teacher's use of go-redis for cross-process
// state (minimal-signal/server/server.go queueMessage/retrieveQueuedMessages),
// here applied to a SETNX-with-TTL seen-set instead of a message queue.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDedup constructs a dedup ring backed by client, with entries
// expiring after ttl (approximating the in-memory ring's capacity-driven
// eviction with Redis's native TTL eviction).
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{client: client, ttl: ttl, prefix: "reticulum:dedup:"}
}

// SeenOrInsert uses SETNX so the first caller to observe hash gets false
// (not previously seen) and every subsequent caller within ttl gets true.
func (r *RedisDedup) SeenOrInsert(hash [32]byte, firstSeen time.Time) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := r.prefix + hex.EncodeToString(hash[:])
	ok, err := r.client.SetNX(ctx, key, firstSeen.UnixNano(), r.ttl).Result()
	if err != nil {
		// Fail open: on Redis errors, treat as unseen so the packet is not
		// silently swallowed by an infrastructure outage.
		return false
	}
	return !ok
}

// Len reports the size of the dedup key space. Best-effort only: DBSIZE
// counts the whole logical database, not just dedup keys, so this is an
// upper bound useful for diagnostics, not an exact count.
func (r *RedisDedup) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
