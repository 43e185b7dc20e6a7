package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/remote"
)

// fakeRemote is an in-memory remote.Store with controllable subscriptions.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	records map[string]map[string]remote.Record

	subscribeErr error
	onChange     remote.ChangeFunc
	onError      remote.ErrorFunc
	unsubscribed int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]map[string]remote.Record)}
}

func (f *fakeRemote) seed(collection, id string, data json.RawMessage, updatedAt int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[collection] == nil {
		f.records[collection] = make(map[string]remote.Record)
	}
	f.records[collection][id] = remote.Record{ID: id, Data: data, UpdatedAt: updatedAt}
}

func (f *fakeRemote) Query(ctx context.Context, collection string, filters []remote.Filter, limit int) ([]remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []remote.Record
	for _, r := range f.records[collection] {
		if matchesUpdatedAt(r, filters) {
			result = append(result, r)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matchesUpdatedAt(r remote.Record, filters []remote.Filter) bool {
	for _, flt := range filters {
		if flt.Field == remote.FieldUpdatedAt && flt.Op == remote.FilterGreaterThan {
			if r.UpdatedAt <= flt.Value.(int64) {
				return false
			}
		}
	}
	return true
}

func (f *fakeRemote) Insert(ctx context.Context, collection string, payload json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	if f.records[collection] == nil {
		f.records[collection] = make(map[string]remote.Record)
	}
	f.records[collection][id] = remote.Record{ID: id, Data: payload}
	return id, nil
}

func (f *fakeRemote) Update(ctx context.Context, collection, id string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[collection][id]; !ok {
		return remote.ErrNotFound
	}
	f.records[collection][id] = remote.Record{ID: id, Data: payload}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.records[collection], id)
	return nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, collection string, filters []remote.Filter, onChange remote.ChangeFunc, onError remote.ErrorFunc) (remote.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.onChange = onChange
	f.onError = onError
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed++
	}, nil
}

// emitChange pushes a record set through the captured subscription callback.
func (f *fakeRemote) emitChange(records []remote.Record) {
	f.mu.Lock()
	onChange := f.onChange
	f.mu.Unlock()
	onChange(records)
}

func (f *fakeRemote) emitError(err error) {
	f.mu.Lock()
	onError := f.onError
	f.mu.Unlock()
	onError(err)
}
