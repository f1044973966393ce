// Package store implements the concurrent key/value map at the heart of the
// daemon (§4.3): sharded for read-mostly traffic, with lazy TTL expiration
// and value sharing without copying.
package store

import (
	"sync/atomic"

	"github.com/adred-codev/localcached/internal/wire"
)

// fixedOverheadBytes approximates the per-entry structural cost (map bucket,
// Entry struct, pointers) added on top of the raw key+value bytes when
// accounting approx_mem_bytes (§3 invariant 3).
const fixedOverheadBytes = 64

// Entry is one live cache value. Value is never mutated after construction,
// so it may be handed to callers without copying; the only mutable field is
// touchedMs, updated atomically on every GET.
type Entry struct {
	Format      wire.ValueFormat
	Value       []byte
	ExpiresAtMs uint64 // 0 = no expiration
	touchedMs   atomic.Uint64
	SizeBytes   int
}

// NewEntry builds an Entry with touchedMs initialized to now.
func NewEntry(format wire.ValueFormat, value []byte, expiresAtMs uint64, key string, now uint64) *Entry {
	e := &Entry{
		Format:      format,
		Value:       value,
		ExpiresAtMs: expiresAtMs,
		SizeBytes:   len(key) + len(value),
	}
	e.touchedMs.Store(now)
	return e
}

// IsExpired reports whether the entry has passed its TTL as of now.
func (e *Entry) IsExpired(now uint64) bool {
	return e.ExpiresAtMs != 0 && now >= e.ExpiresAtMs
}

// Touch records an access time without blocking other readers.
func (e *Entry) Touch(now uint64) {
	e.touchedMs.Store(now)
}

// TouchedAt returns the last access time, read without mutating.
func (e *Entry) TouchedAt() uint64 {
	return e.touchedMs.Load()
}

// TTLRemaining returns the milliseconds left before expiry, or 0 if the
// entry never expires or has already expired.
func (e *Entry) TTLRemaining(now uint64) uint64 {
	if e.ExpiresAtMs == 0 || now >= e.ExpiresAtMs {
		return 0
	}
	return e.ExpiresAtMs - now
}
