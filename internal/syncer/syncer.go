package syncer

import (
	"context"

	"github.com/dmitrijs2005/shopsync/internal/logging"
)

// Syncer runs one full reconciliation cycle: pull every tracked collection,
// then drain the push queue. The queue is drained after the pull phase, so
// a queued push can overwrite a just-pulled remote value for the same
// record; this is accepted last-write-wins behavior.
type Syncer struct {
	puller *Puller
	pusher *Pusher
	logger logging.Logger
}

// New combines a Puller and a Pusher into a cycle runner.
func New(puller *Puller, pusher *Pusher, logger logging.Logger) *Syncer {
	return &Syncer{puller: puller, pusher: pusher, logger: logger}
}

// RunCycle executes one sync cycle. Per-collection pull failures are
// handled inside the puller; the returned error reflects cancellation or a
// queue-level failure only.
func (s *Syncer) RunCycle(ctx context.Context) error {
	pulled, err := s.puller.PullAll(ctx)
	if err != nil {
		return err
	}

	pushed, err := s.pusher.Drain(ctx)
	if err != nil {
		return err
	}

	if pulled > 0 || pushed > 0 {
		s.logger.Info(ctx, "sync cycle complete", "pulled", pulled, "pushed", pushed)
	}
	return nil
}
