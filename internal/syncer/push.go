package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/models"
	"github.com/dmitrijs2005/shopsync/internal/remote"
	"github.com/dmitrijs2005/shopsync/internal/repositories/queue"
	"github.com/dmitrijs2005/shopsync/internal/repositories/store"
)

// Pusher applies locally-queued mutations to the remote store with a
// bounded retry count per item.
type Pusher struct {
	store      store.Repository
	queue      queue.Repository
	remote     remote.Store
	maxRetries int
	logger     logging.Logger
}

// NewPusher returns a Pusher with the given retry ceiling.
func NewPusher(s store.Repository, q queue.Repository, r remote.Store, maxRetries int, logger logging.Logger) *Pusher {
	return &Pusher{
		store:      s,
		queue:      q,
		remote:     r,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Drain processes all pending queue items sequentially, in enqueue order, so
// dependent operations on the same record apply as issued. Transient and
// permanent remote failures both consume a retry; an item that exhausts its
// retries moves to the dead-letter partition and leaves the queue.
func (p *Pusher) Drain(ctx context.Context) (int, error) {
	items, err := p.queue.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read sync queue: %w", err)
	}

	applied := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if err := p.apply(ctx, item); err != nil {
			p.recordFailure(ctx, item, err)
			continue
		}

		if err := p.queue.Remove(ctx, item.ID); err != nil {
			p.logger.Error(ctx, "failed to remove applied queue item",
				"item", item.ID, "error", err)
			continue
		}
		applied++
	}
	return applied, nil
}

// apply dispatches one mutation to the remote store and settles the local
// entry state on success.
func (p *Pusher) apply(ctx context.Context, item models.QueueItem) error {
	switch item.Operation {
	case models.OperationCreate:
		// The server assigns the canonical id; the local entry is re-keyed
		// from its temporary id before being confirmed.
		newID, err := p.remote.Insert(ctx, item.Collection, item.Data)
		if err != nil {
			return err
		}
		if err := p.store.Rekey(ctx, item.Collection, item.RecordID, newID); err != nil {
			return err
		}
		return p.markSynced(ctx, item.Collection, newID)

	case models.OperationUpdate:
		if err := p.remote.Update(ctx, item.Collection, item.RecordID, item.Data); err != nil {
			return err
		}
		return p.markSynced(ctx, item.Collection, item.RecordID)

	case models.OperationDelete:
		if err := p.remote.Delete(ctx, item.Collection, item.RecordID); err != nil {
			return err
		}
		return p.removeTombstone(ctx, item.Collection, item.RecordID)

	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidOperation, item.Operation)
	}
}

// removeTombstone clears the local entry once its remote delete is
// confirmed. The record may have been re-created (with its own queued
// create) while the delete waited; a live entry is left alone.
func (p *Pusher) removeTombstone(ctx context.Context, collection, id string) error {
	entry, err := p.store.Get(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !entry.Deleted {
		return nil
	}
	return p.store.Delete(ctx, collection, id)
}

func (p *Pusher) markSynced(ctx context.Context, collection, id string) error {
	err := p.store.MarkSynced(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) {
		// The entry was cleared locally while its push was in flight.
		return nil
	}
	return err
}

func (p *Pusher) recordFailure(ctx context.Context, item models.QueueItem, cause error) {
	retries, err := p.queue.IncrementRetries(ctx, item.ID)
	if err != nil {
		p.logger.Error(ctx, "failed to record push failure",
			"item", item.ID, "error", err)
		return
	}

	if retries < p.maxRetries {
		p.logger.Warn(ctx, "push failed, leaving item queued",
			"item", item.ID, "operation", item.Operation,
			"retries", retries, "error", cause)
		return
	}

	item.Retries = retries
	if err := p.queue.MoveToDeadLetter(ctx, item, cause.Error()); err != nil {
		p.logger.Error(ctx, "failed to dead-letter queue item",
			"item", item.ID, "error", err)
		return
	}
	p.logger.Error(ctx, "queue item abandoned after retry ceiling",
		"item", item.ID, "collection", item.Collection,
		"operation", item.Operation, "retries", retries, "error", cause)
}
