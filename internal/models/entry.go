// Package models defines the cache envelope and sync queue types shared by
// the local store, the synchronizers and the cache façade.
package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is one row in a collection partition of the local store.
//
// Data is an opaque application payload; the cache layer never inspects it.
// The remaining fields form the envelope the cache layer manages itself:
//
//   - Timestamp is the last local-store write time in epoch milliseconds. The
//     per-collection sync watermark is the maximum Timestamp among synced,
//     non-deleted entries.
//   - Version is tracked per entry for future optimistic-concurrency use and
//     is currently always 1.
//   - Synced is true once the remote store has confirmed this exact state.
//   - Deleted marks a tombstone: excluded from list reads, retained until the
//     queued delete has been pushed.
type CacheEntry struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	Version    int             `json:"version"`
	Synced     bool            `json:"synced"`
	Deleted    bool            `json:"deleted,omitempty"`
}

// Pending reports whether the entry still awaits confirmation by the remote
// store. A pending entry has exactly one corresponding queue item.
func (e *CacheEntry) Pending() bool {
	return !e.Synced
}

// NowMillis returns the current wall-clock time in epoch milliseconds, the
// unit used for entry timestamps and watermarks.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
