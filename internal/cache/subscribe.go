package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/remote"
)

// Subscribe serves cached data immediately and upgrades to real-time remote
// updates: the callback first receives the current cached set, then a
// refreshed set after every remote change has been merged into the local
// store. A failing remote subscription is downgraded, not propagated — the
// callback keeps receiving the cached set instead.
//
// The returned function detaches the subscription and is safe to call
// multiple times.
func (s *Service) Subscribe(ctx context.Context, collection string, filters []remote.Filter, callback func([]json.RawMessage)) remote.UnsubscribeFunc {
	callback(s.List(ctx, collection, nil))

	onChange := func(records []remote.Record) {
		for _, r := range records {
			if _, err := s.store.Upsert(ctx, collection, r.ID, r.Data, true); err != nil {
				s.logger.Error(ctx, "failed to merge remote change",
					"collection", collection, "id", r.ID, "error", err)
			}
		}
		callback(s.List(ctx, collection, nil))
	}

	onError := func(err error) {
		s.logger.Warn(ctx, "remote subscription error, serving cached data",
			"collection", collection, "error", err)
		callback(s.List(ctx, collection, nil))
	}

	unsubscribe, err := s.remote.Subscribe(ctx, collection, filters, onChange, onError)
	if err != nil {
		s.logger.Warn(ctx, "remote subscription unavailable, serving cached data",
			"collection", collection, "error", err)
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(unsubscribe)
	}
}
