package store

import (
	"strings"
	"sync"

	"github.com/adred-codev/localcached/internal/wire"
)

// shardCount is fixed rather than derived from GOMAXPROCS: the store is
// read-mostly and contention is already low per-shard at this width, and a
// fixed count keeps approx_mem_bytes's shard iteration order stable for
// testing.
const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// KvStore is a sharded concurrent map from key to Entry (§4.3). A writer
// blocks readers only of keys in its own shard, and only while it updates
// the shard map; writes to the same key serialize at the shard level.
type KvStore struct {
	shards [shardCount]*shard
}

// New constructs an empty KvStore.
func New() *KvStore {
	s := &KvStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *KvStore) shardFor(key string) *shard {
	h := fnv32(key)
	return s.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// Set replaces any prior entry for key atomically, recording touchedMs = now.
func (s *KvStore) Set(key string, format wire.ValueFormat, value []byte, expiresAtMs uint64, now uint64) {
	sh := s.shardFor(key)
	e := NewEntry(format, value, expiresAtMs, key, now)
	sh.mu.Lock()
	sh.entries[key] = e
	sh.mu.Unlock()
}

// Get returns the stored value if present and not expired. A lazily
// discovered expiration removes the entry and reports a miss. A hit
// updates touchedMs without blocking other readers of different keys.
func (s *KvStore) Get(key string, now uint64) (format wire.ValueFormat, value []byte, ttlRemaining uint64, ok bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, found := sh.entries[key]
	sh.mu.RUnlock()
	if !found {
		return 0, nil, 0, false
	}
	if e.IsExpired(now) {
		sh.mu.Lock()
		if cur, still := sh.entries[key]; still && cur == e {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return 0, nil, 0, false
	}
	e.Touch(now)
	return e.Format, e.Value, e.TTLRemaining(now), true
}

// Del removes key and reports whether it existed.
func (s *KvStore) Del(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, existed := sh.entries[key]
	delete(sh.entries, key)
	sh.mu.Unlock()
	return existed
}

// Len returns the number of live entries, including not-yet-lazily-expired
// ones (matches the original's keys_count accounting, which is a raw map
// count rather than an expiry-filtered one).
func (s *KvStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// ApproxMemBytes sums size_bytes + fixed overhead across all live entries.
// O(n); only called by STATS and by the eviction controller on threshold
// changes (§4.3).
func (s *KvStore) ApproxMemBytes() uint64 {
	var total uint64
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			total += uint64(e.SizeBytes + fixedOverheadBytes)
		}
		sh.mu.RUnlock()
	}
	return total
}

// Keys returns a best-effort-consistent snapshot of non-expired keys
// beginning with prefix.
func (s *KvStore) Keys(prefix string, now uint64) []string {
	var out []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, e := range sh.entries {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			if e.IsExpired(now) {
				continue
			}
			out = append(out, k)
		}
		sh.mu.RUnlock()
	}
	return out
}

// PeekTouchedAt returns touchedMs without mutating it, or (0, false) if the
// key is absent. Used by the evictor for victim selection (§4.6).
func (s *KvStore) PeekTouchedAt(key string) (uint64, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, found := sh.entries[key]
	sh.mu.RUnlock()
	if !found {
		return 0, false
	}
	return e.TouchedAt(), true
}
