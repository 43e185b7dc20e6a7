package dynamo

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/remote"
)

// Subscribe polls the collection for records newer than the last delivery
// and invokes onChange with each batch of changed records. The initial poll
// delivers the full matching set so new subscribers start from current
// state. Poll failures go to onError; polling continues afterwards.
func (s *Store) Subscribe(ctx context.Context, collection string, filters []remote.Filter, onChange remote.ChangeFunc, onError remote.ErrorFunc) (remote.UnsubscribeFunc, error) {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var lastSeen int64

		poll := func() {
			f := filters
			if lastSeen > 0 {
				f = append(append([]remote.Filter{}, filters...),
					remote.GreaterThan(remote.FieldUpdatedAt, lastSeen))
			}

			records, err := s.Query(ctx, collection, f, 0)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			if lastSeen > 0 && len(records) == 0 {
				return
			}
			for _, r := range records {
				if r.UpdatedAt > lastSeen {
					lastSeen = r.UpdatedAt
				}
			}
			onChange(records)
		}

		poll()

		for {
			select {
			case <-ticker.C:
				poll()
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		once.Do(func() { close(stop) })
	}
	return unsubscribe, nil
}
