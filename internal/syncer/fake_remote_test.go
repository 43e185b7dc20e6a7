package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/remote"
)

type queryCall struct {
	Collection string
	Filters    []remote.Filter
	Limit      int
}

// fakeRemote is an in-memory remote.Store with injectable failures.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	records map[string]map[string]remote.Record

	queries []queryCall

	queryErr  map[string]error
	insertErr error
	updateErr error
	deleteErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records:  make(map[string]map[string]remote.Record),
		queryErr: make(map[string]error),
	}
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

	f.queries = append(f.queries, queryCall{Collection: collection, Filters: filters, Limit: limit})
	if err := f.queryErr[collection]; err != nil {
		return nil, err
	}

	var result []remote.Record
	for _, r := range f.records[collection] {
		if matches(r, filters) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt < result[j].UpdatedAt })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matches(r remote.Record, filters []remote.Filter) bool {
	for _, flt := range filters {
		if flt.Field != remote.FieldUpdatedAt || flt.Op != remote.FilterGreaterThan {
			return false
		}
		if r.UpdatedAt <= flt.Value.(int64) {
			return false
		}
	}
	return true
}

func (f *fakeRemote) Insert(ctx context.Context, collection string, payload json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return "", f.insertErr
	}
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

	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.records[collection][id]; !ok {
		return remote.ErrNotFound
	}
	f.records[collection][id] = remote.Record{ID: id, Data: payload}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records[collection], id)
	return nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, collection string, filters []remote.Filter, onChange remote.ChangeFunc, onError remote.ErrorFunc) (remote.UnsubscribeFunc, error) {
	return func() {}, nil
}
