package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/models"
	"github.com/dmitrijs2005/shopsync/internal/remote"
	"github.com/dmitrijs2005/shopsync/internal/repositories/queue"
	"github.com/dmitrijs2005/shopsync/internal/repositories/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fixture struct {
	store  *store.SQLiteRepository
	queue  *queue.SQLiteRepository
	remote *fakeRemote
	logger logging.Logger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	d := store.NewDatabase("file:" + t.Name() + "?mode=memory&cache=shared")
	t.Cleanup(func() { _ = d.Close() })
	return &fixture{
		store:  store.NewSQLiteRepository(d),
		queue:  queue.NewSQLiteRepository(d),
		remote: newFakeRemote(),
		logger: logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func TestPull_ColdLoad(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("products", "p1", json.RawMessage(`{"name":"tea"}`), 100)
	f.remote.seed("products", "p2", json.RawMessage(`{"name":"coffee"}`), 200)

	p := NewPuller(f.store, f.remote, []string{"products"}, 50, f.logger)
	n, err := p.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, f.remote.queries, 1)
	assert.Empty(t, f.remote.queries[0].Filters, "an empty partition pulls without a watermark filter")
	assert.Equal(t, 50, f.remote.queries[0].Limit)

	e, err := f.store.Get(ctx, "products", "p1")
	require.NoError(t, err)
	assert.True(t, e.Synced, "pulled records arrive already confirmed")
	assert.JSONEq(t, `{"name":"tea"}`, string(e.Data))
}

func TestPull_IncrementalUsesWatermark(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("products", "p1", json.RawMessage(`{"name":"tea"}`), 100)
	p := NewPuller(f.store, f.remote, []string{"products"}, 50, f.logger)
	_, err := p.PullAll(ctx)
	require.NoError(t, err)

	watermark, err := f.store.Watermark(ctx, "products")
	require.NoError(t, err)
	require.Greater(t, watermark, int64(0))

	// one record changed after the first pull, one did not
	f.remote.seed("products", "p2", json.RawMessage(`{"name":"cocoa"}`), watermark+1000)

	n, err := p.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only records newer than the watermark are fetched")

	require.Len(t, f.remote.queries, 2)
	filters := f.remote.queries[1].Filters
	require.Len(t, filters, 1)
	assert.Equal(t, remote.FieldUpdatedAt, filters[0].Field)
	assert.Equal(t, remote.FilterGreaterThan, filters[0].Op)
	assert.Equal(t, watermark, filters[0].Value)

	next, err := f.store.Watermark(ctx, "products")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, next, watermark, "the watermark never moves backwards")
}

func TestPull_BatchLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		f.remote.seed("products", fmt.Sprintf("p%02d", i), json.RawMessage(`{}`), int64(i+1))
	}

	p := NewPuller(f.store, f.remote, []string{"products"}, 50, f.logger)
	n, err := p.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestPull_FailedCollectionDoesNotAbortOthers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.queryErr["shops"] = remote.ErrUnreachable
	f.remote.seed("products", "p1", json.RawMessage(`{}`), 100)

	p := NewPuller(f.store, f.remote, []string{"shops", "products"}, 50, f.logger)
	n, err := p.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPull_SkipsEntriesWithQueuedLocalWrites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("orders", "o1", json.RawMessage(`{"total":1}`), 100)
	_, err := f.store.Upsert(ctx, "orders", "o1", json.RawMessage(`{"total":2}`), false)
	require.NoError(t, err)

	p := NewPuller(f.store, f.remote, []string{"orders"}, 50, f.logger)
	n, err := p.PullAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e, err := f.store.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(e.Data), "the queued local value must survive the pull")
}

func TestPush_CreateRekeysLocalEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "orders", "tmp-1", json.RawMessage(`{"total":5}`), false)
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "orders", models.OperationCreate, "tmp-1", json.RawMessage(`{"total":5}`))
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the temporary id is gone; the server id carries the entry
	_, err = f.store.Get(ctx, "orders", "tmp-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	e, err := f.store.Get(ctx, "orders", "srv-1")
	require.NoError(t, err)
	assert.True(t, e.Synced)

	remaining, err := f.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestPush_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("orders", "o1", json.RawMessage(`{"total":1}`), 100)
	_, err := f.store.Upsert(ctx, "orders", "o1", json.RawMessage(`{"total":2}`), false)
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{"total":2}`))
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.JSONEq(t, `{"total":2}`, string(f.remote.records["orders"]["o1"].Data))

	e, err := f.store.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.True(t, e.Synced)
}

func TestPush_DeleteRemovesTombstone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("orders", "o1", json.RawMessage(`{}`), 100)
	_, err := f.store.Upsert(ctx, "orders", "o1", json.RawMessage(`{}`), true)
	require.NoError(t, err)
	require.NoError(t, f.store.Tombstone(ctx, "orders", "o1"))
	_, err = f.queue.Enqueue(ctx, "orders", models.OperationDelete, "o1", json.RawMessage(`{"id":"o1"}`))
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := f.remote.records["orders"]["o1"]
	assert.False(t, ok)

	// the tombstone is gone for good once the remote confirmed
	_, err = f.store.Get(ctx, "orders", "o1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPush_DeleteLeavesRecreatedEntryAlone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// the record was re-created under the same id while its delete waited
	f.remote.seed("orders", "o1", json.RawMessage(`{"total":1}`), 100)
	_, err := f.queue.Enqueue(ctx, "orders", models.OperationDelete, "o1", json.RawMessage(`{"id":"o1"}`))
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, "orders", "o1", json.RawMessage(`{"total":2}`), false)
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := f.remote.records["orders"]["o1"]
	assert.False(t, ok, "the old remote copy is removed")

	e, err := f.store.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(e.Data), "the live local entry must survive the delete push")
}

func TestPush_FailureLeavesItemQueued(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{}`))
	require.NoError(t, err)
	f.remote.updateErr = remote.ErrUnreachable

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	items, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)
}

func TestPush_RetryCeilingDeadLetters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	item, err := f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{}`))
	require.NoError(t, err)
	f.remote.updateErr = remote.ErrRejected

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	for i := 0; i < 3; i++ {
		_, err := p.Drain(ctx)
		require.NoError(t, err)
	}

	remaining, err := f.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining, "the exhausted item must leave the queue")

	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, item.ID, dead[0].ID)
	assert.Equal(t, 3, dead[0].Retries)
	assert.Contains(t, dead[0].Reason, remote.ErrRejected.Error())
}

func TestPush_FailedItemDoesNotBlockOthers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("orders", "o1", json.RawMessage(`{}`), 100)
	_, err := f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "missing", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{"total":9}`))
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a failing item must not stall the queue behind it")
	assert.JSONEq(t, `{"total":9}`, string(f.remote.records["orders"]["o1"].Data))
}

func TestRunCycle_Cancelled(t *testing.T) {
	f := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(
		NewPuller(f.store, f.remote, []string{"products"}, 50, f.logger),
		NewPusher(f.store, f.queue, f.remote, 3, f.logger),
		f.logger,
	)
	err := s.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCycle_PullThenPush(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.seed("orders", "o1", json.RawMessage(`{"total":1}`), 100)
	_, err := f.store.Upsert(ctx, "orders", "o1", json.RawMessage(`{"total":2}`), false)
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{"total":2}`))
	require.NoError(t, err)

	s := New(
		NewPuller(f.store, f.remote, []string{"orders"}, 50, f.logger),
		NewPusher(f.store, f.queue, f.remote, 3, f.logger),
		f.logger,
	)
	require.NoError(t, s.RunCycle(ctx))

	// the queued local write drains after the pull, so it wins the cycle
	e, err := f.store.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(e.Data))
	assert.JSONEq(t, `{"total":2}`, string(f.remote.records["orders"]["o1"].Data))
	assert.True(t, e.Synced)
}

func TestMarkSyncedToleratesClearedEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// queued update for an entry the application already cleared locally
	f.remote.seed("orders", "o1", json.RawMessage(`{}`), 100)
	_, err := f.queue.Enqueue(ctx, "orders", models.OperationUpdate, "o1", json.RawMessage(`{"total":3}`))
	require.NoError(t, err)

	p := NewPusher(f.store, f.queue, f.remote, 3, f.logger)
	n, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
