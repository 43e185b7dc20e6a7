package queue

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/shopsync/internal/models"
)

// Repository is the durable FIFO log of pending outbound mutations, plus the
// dead-letter partition holding mutations abandoned after the retry ceiling.
type Repository interface {
	// Enqueue appends a mutation with retries=0. A pending item for the
	// same (collection, record) is replaced so each unsynced entry keeps
	// at most one live mutation; a replaced create stays a create, since
	// the remote store has never seen the record. A pending delete is
	// never replaced: the new mutation queues behind it so the remote
	// copy is removed before the record's next life is pushed.
	Enqueue(ctx context.Context, collection string, op models.Operation, recordID string, data json.RawMessage) (*models.QueueItem, error)

	// Pending returns all queued items in ascending timestamp order.
	Pending(ctx context.Context) ([]models.QueueItem, error)

	// Remove deletes a queue item after successful application or after it
	// was moved to the dead-letter partition.
	Remove(ctx context.Context, id string) error

	// IncrementRetries bumps the retry counter and returns the new value.
	// The caller checks the ceiling and moves the item to the dead-letter
	// partition when it is exceeded.
	IncrementRetries(ctx context.Context, id string) (int, error)

	// Count returns the number of queued items, for the status surface.
	Count(ctx context.Context) (int, error)

	// Clear empties the queue (full cache resets).
	Clear(ctx context.Context) error

	// MoveToDeadLetter atomically removes an item from the queue and
	// records it in the dead-letter partition with the failure reason.
	MoveToDeadLetter(ctx context.Context, item models.QueueItem, reason string) error

	// DeadLetters lists abandoned items, newest first.
	DeadLetters(ctx context.Context) ([]models.DeadLetterItem, error)

	// Replay moves a dead-letter item back into the queue with a reset
	// retry counter.
	Replay(ctx context.Context, id string) (*models.QueueItem, error)
}
