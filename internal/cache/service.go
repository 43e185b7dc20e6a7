// Package cache is the public surface of the offline-first cache: reads and
// writes against the local store, queueing of outbound mutations, live
// subscriptions and the sync status snapshot. No component outside this
// package's collaborators touches the local store or the sync queue
// directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/models"
	"github.com/dmitrijs2005/shopsync/internal/remote"
	"github.com/dmitrijs2005/shopsync/internal/repositories/queue"
	"github.com/dmitrijs2005/shopsync/internal/repositories/store"
)

// SyncTrigger is the slice of the scheduler the façade needs: opportunistic
// sync scheduling, forced cycles and the connectivity flag.
type SyncTrigger interface {
	NotifyLocalWrite()
	ForceSync(ctx context.Context)
	Online() bool
}

// Service is the cache façade. Construct it with NewService and share it by
// reference from the composition root.
type Service struct {
	store   store.Repository
	queue   queue.Repository
	remote  remote.Store
	trigger SyncTrigger
	logger  logging.Logger
}

// NewService wires the façade from its collaborators.
func NewService(s store.Repository, q queue.Repository, r remote.Store, trigger SyncTrigger, logger logging.Logger) *Service {
	return &Service{store: s, queue: q, remote: r, trigger: trigger, logger: logger}
}

// Get returns the cached payload for one record, or nil when the record is
// absent or tombstoned. Reads never fail: a storage error is logged and
// reported as absence, so callers can render unconditionally.
func (s *Service) Get(ctx context.Context, collection, id string) json.RawMessage {
	entry, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error(ctx, "cache read failed", "collection", collection, "id", id, "error", err)
		return nil
	}
	if entry.Deleted {
		return nil
	}
	return entry.Data
}

// List returns all cached, non-tombstoned payloads of a collection,
// optionally filtered by pred. Like Get, it degrades to an empty result on
// storage failure.
func (s *Service) List(ctx context.Context, collection string, pred store.Predicate) []json.RawMessage {
	entries, err := s.store.List(ctx, collection, pred)
	if err != nil {
		s.logger.Error(ctx, "cache list failed", "collection", collection, "error", err)
		return nil
	}

	result := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Data)
	}
	return result
}

// Set writes through to the local store immediately. With syncRemote the
// mutation is additionally queued for the push synchronizer and an
// opportunistic sync is scheduled; without it the entry is stored as
// local-only, confirmed state.
//
// Unlike reads, a write that cannot be durably recorded is visible to the
// caller as an error.
func (s *Service) Set(ctx context.Context, collection, id string, data json.RawMessage, syncRemote bool) error {
	if !syncRemote {
		_, err := s.store.Upsert(ctx, collection, id, data, true)
		return err
	}

	op := models.OperationUpdate
	existing, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) || (err == nil && existing.Deleted) {
		op = models.OperationCreate
	} else if err != nil {
		return err
	}

	if _, err := s.store.Upsert(ctx, collection, id, data, false); err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, collection, op, id, data); err != nil {
		return err
	}

	s.trigger.NotifyLocalWrite()
	return nil
}

// Delete tombstones the record and queues a remote delete; the entry is
// physically removed once the push is confirmed. Without syncRemote the
// record is removed locally right away. Deleting an absent or
// already-deleted record is a no-op.
func (s *Service) Delete(ctx context.Context, collection, id string, syncRemote bool) error {
	entry, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.Deleted {
		return nil
	}

	if !syncRemote {
		return s.store.Delete(ctx, collection, id)
	}

	if err := s.store.Tombstone(ctx, collection, id); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	payload, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, collection, models.OperationDelete, id, payload); err != nil {
		return err
	}

	s.trigger.NotifyLocalWrite()
	return nil
}

// ClearCollection empties a partition entirely (full cache reset).
func (s *Service) ClearCollection(ctx context.Context, collection string) error {
	return s.store.Clear(ctx, collection)
}

// Status returns the pending-mutation count and connectivity flag for UI
// display. A failing queue read degrades to zero pending.
func (s *Service) Status(ctx context.Context) models.SyncStatus {
	pending, err := s.queue.Count(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to count pending mutations", "error", err)
		pending = 0
	}
	return models.SyncStatus{PendingSync: pending, Online: s.trigger.Online()}
}

// ForceSync triggers an out-of-band sync cycle if online and not already
// syncing; otherwise it is a no-op.
func (s *Service) ForceSync(ctx context.Context) {
	s.trigger.ForceSync(ctx)
}

// DeadLetters lists mutations abandoned after the retry ceiling.
func (s *Service) DeadLetters(ctx context.Context) ([]models.DeadLetterItem, error) {
	return s.queue.DeadLetters(ctx)
}

// ReplayDeadLetter moves an abandoned mutation back into the sync queue.
func (s *Service) ReplayDeadLetter(ctx context.Context, id string) error {
	_, err := s.queue.Replay(ctx, id)
	if err != nil {
		return err
	}
	s.trigger.NotifyLocalWrite()
	return nil
}
