package store

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/shopsync/internal/models"
)

// Predicate filters entries during a partition scan. It receives the opaque
// payload; a predicate that cannot evaluate an entry (for example because a
// field is absent) should simply return false.
type Predicate func(data json.RawMessage) bool

// Repository describes the durable, partitioned local store that backs the
// cache. Partitions are named after the remote collections they mirror.
// Implementations are backed by a local SQLite database.
type Repository interface {
	// Get returns a single entry, including tombstoned ones, or
	// common.ErrNotFound.
	Get(ctx context.Context, collection, id string) (*models.CacheEntry, error)

	// List returns all non-tombstoned entries of a partition, optionally
	// filtered by pred (nil means no filter).
	List(ctx context.Context, collection string, pred Predicate) ([]models.CacheEntry, error)

	// Upsert writes an entry with a fresh timestamp, preserving an existing
	// version or defaulting it to 1, and clears any tombstone mark.
	Upsert(ctx context.Context, collection, id string, data json.RawMessage, synced bool) (*models.CacheEntry, error)

	// MarkSynced flags an entry as confirmed by the remote store.
	MarkSynced(ctx context.Context, collection, id string) error

	// Rekey renames an entry after the remote store assigned its canonical
	// id (create pushes).
	Rekey(ctx context.Context, collection, oldID, newID string) error

	// Tombstone soft-deletes an entry so the queued delete can still be
	// pushed. The entry disappears from List but stays visible to Get.
	Tombstone(ctx context.Context, collection, id string) error

	// Delete physically removes an entry. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// Clear empties a partition entirely.
	Clear(ctx context.Context, collection string) error

	// Watermark returns the maximum timestamp among synced, non-tombstoned
	// entries of a partition, or 0 for an empty partition.
	Watermark(ctx context.Context, collection string) (int64, error)
}
