package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/models"
)

// SQLiteRepository implements Repository on top of a lazily-initialized
// Database. All partitions live in the cache_entries table keyed by
// (collection, id).
type SQLiteRepository struct {
	d *Database
}

// NewSQLiteRepository returns a SQLiteRepository bound to the given Database.
func NewSQLiteRepository(d *Database) *SQLiteRepository {
	return &SQLiteRepository{d: d}
}

func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) (*models.CacheEntry, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT data, timestamp, version, synced, deleted
		FROM cache_entries WHERE collection = ? AND id = ?`
	row := db.QueryRowContext(ctx, query, collection, id)

	e := &models.CacheEntry{Collection: collection, ID: id}
	var data string
	err = row.Scan(&data, &e.Timestamp, &e.Version, &e.Synced, &e.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s/%s: %w", collection, id, err)
	}
	e.Data = json.RawMessage(data)
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, collection string, pred Predicate) ([]models.CacheEntry, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, data, timestamp, version, synced
		FROM cache_entries WHERE collection = ? AND deleted = 0 ORDER BY id`
	rows, err := db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries in %s: %w", collection, err)
	}
	defer rows.Close()

	var result []models.CacheEntry
	for rows.Next() {
		e := models.CacheEntry{Collection: collection}
		var data string
		if err := rows.Scan(&e.ID, &data, &e.Timestamp, &e.Version, &e.Synced); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		if pred != nil && !pred(e.Data) {
			continue
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, collection, id string, data json.RawMessage, synced bool) (*models.CacheEntry, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	now := models.NowMillis()
	query := `INSERT INTO cache_entries (collection, id, data, timestamp, version, synced, deleted)
		VALUES (?, ?, ?, ?, 1, ?, 0)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			timestamp = excluded.timestamp,
			synced = excluded.synced,
			deleted = 0,
			version = cache_entries.version`
	_, err = db.ExecContext(ctx, query, collection, id, string(data), now, synced)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entry %s/%s: %w", collection, id, err)
	}

	return r.Get(ctx, collection, id)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, collection, id string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE cache_entries SET synced = 1 WHERE collection = ? AND id = ?`,
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry %s/%s synced: %w", collection, id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Rekey(ctx context.Context, collection, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	// The remote may already have pushed the canonical record back to us
	// through a pull; an existing row under newID wins.
	query := `UPDATE OR REPLACE cache_entries SET id = ? WHERE collection = ? AND id = ?`
	_, err = db.ExecContext(ctx, query, newID, collection, oldID)
	if err != nil {
		return fmt.Errorf("failed to rekey entry %s/%s to %s: %w", collection, oldID, newID, err)
	}
	return nil
}

func (r *SQLiteRepository) Tombstone(ctx context.Context, collection, id string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE cache_entries SET deleted = 1, synced = 0, timestamp = ?
			WHERE collection = ? AND id = ? AND deleted = 0`,
		models.NowMillis(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to tombstone entry %s/%s: %w", collection, id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE collection = ? AND id = ?`,
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, collection string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM cache_entries WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", collection, err)
	}
	return nil
}

func (r *SQLiteRepository) Watermark(ctx context.Context, collection string) (int64, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var watermark int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(timestamp), 0) FROM cache_entries
			WHERE collection = ? AND synced = 1 AND deleted = 0`,
		collection).Scan(&watermark)
	if err != nil {
		return 0, fmt.Errorf("failed to compute watermark for %s: %w", collection, err)
	}
	return watermark, nil
}
