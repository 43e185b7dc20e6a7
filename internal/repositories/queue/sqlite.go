package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/models"
	"github.com/dmitrijs2005/shopsync/internal/repositories/store"
)

// SQLiteRepository implements Repository over the sync_queue and dead_letter
// tables of the local store.
type SQLiteRepository struct {
	d *store.Database
}

// NewSQLiteRepository returns a SQLiteRepository bound to the given Database.
func NewSQLiteRepository(d *store.Database) *SQLiteRepository {
	return &SQLiteRepository{d: d}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, collection string, op models.Operation, recordID string, data json.RawMessage) (*models.QueueItem, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidOperation, op)
	}

	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	now := models.NowMillis()
	item := &models.QueueItem{
		ID:         models.NewQueueItemID(collection, op, now),
		Collection: collection,
		Operation:  op,
		RecordID:   recordID,
		Data:       data,
		Timestamp:  now,
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var prevID string
		var prevOp models.Operation
		err := tx.QueryRowContext(ctx,
			`SELECT id, operation FROM sync_queue WHERE collection = ? AND record_id = ?
				ORDER BY timestamp DESC, id DESC LIMIT 1`,
			collection, recordID).Scan(&prevID, &prevOp)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		// A queued delete must still reach the remote even when the record
		// is re-created afterwards, or the remote copy outlives the local
		// one and the next pull resurrects it. Keep the delete and append
		// the new mutation behind it; anything else is superseded.
		if err == nil && prevOp != models.OperationDelete {
			// An unsent create stays a create regardless of what the
			// application calls the follow-up write.
			if prevOp == models.OperationCreate && item.Operation == models.OperationUpdate {
				item.Operation = models.OperationCreate
				item.ID = models.NewQueueItemID(collection, models.OperationCreate, now)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, prevID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_queue (id, collection, operation, record_id, data, timestamp, retries)
				VALUES (?, ?, ?, ?, ?, ?, 0)`,
			item.ID, item.Collection, item.Operation, item.RecordID, string(item.Data), item.Timestamp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s for %s/%s: %w", op, collection, recordID, err)
	}
	return item, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]models.QueueItem, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, collection, operation, record_id, data, timestamp, retries
			FROM sync_queue ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove queue item %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetries(ctx context.Context, id string) (int, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var retries int
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sync_queue SET retries = retries + 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if ra == 0 {
			return common.ErrNotFound
		}
		return tx.QueryRowContext(ctx,
			`SELECT retries FROM sync_queue WHERE id = ?`, id).Scan(&retries)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment retries for %s: %w", id, err)
	}
	return retries, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MoveToDeadLetter(ctx context.Context, item models.QueueItem, reason string) error {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dead_letter (id, collection, operation, record_id, data, timestamp, retries, reason, abandoned_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Collection, item.Operation, item.RecordID, string(item.Data),
			item.Timestamp, item.Retries, reason, models.NowMillis())
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, item.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter queue item %s: %w", item.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeadLetters(ctx context.Context) ([]models.DeadLetterItem, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, collection, operation, record_id, data, timestamp, retries, reason, abandoned_at
			FROM dead_letter ORDER BY abandoned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select dead-letter items: %w", err)
	}
	defer rows.Close()

	var result []models.DeadLetterItem
	for rows.Next() {
		var item models.DeadLetterItem
		var data string
		if err := rows.Scan(&item.ID, &item.Collection, &item.Operation, &item.RecordID,
			&data, &item.Timestamp, &item.Retries, &item.Reason, &item.AbandonedAt); err != nil {
			return nil, err
		}
		item.Data = json.RawMessage(data)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Replay(ctx context.Context, id string) (*models.QueueItem, error) {
	db, err := r.d.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var item models.QueueItem
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var data string
		err := tx.QueryRowContext(ctx,
			`SELECT id, collection, operation, record_id, data FROM dead_letter WHERE id = ?`, id).
			Scan(&item.ID, &item.Collection, &item.Operation, &item.RecordID, &data)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		item.Data = json.RawMessage(data)
		item.Timestamp = models.NowMillis()
		item.Retries = 0

		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_queue (id, collection, operation, record_id, data, timestamp, retries)
				VALUES (?, ?, ?, ?, ?, ?, 0)`,
			item.ID, item.Collection, item.Operation, item.RecordID, data, item.Timestamp)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM dead_letter WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay dead-letter item %s: %w", id, err)
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]models.QueueItem, error) {
	var result []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var data string
		if err := rows.Scan(&item.ID, &item.Collection, &item.Operation, &item.RecordID,
			&data, &item.Timestamp, &item.Retries); err != nil {
			return nil, err
		}
		item.Data = json.RawMessage(data)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
