// Package scheduler drives when synchronization runs: it observes
// online/offline transitions by probing the remote store, runs the periodic
// sync timer while online, and serves debounced opportunistic syncs after
// local writes. Only one sync cycle runs at a time.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/remote"
)

// State is the scheduler's connectivity/sync state.
type State string

const (
	StateOffline       State = "offline"
	StateOnlineIdle    State = "online-idle"
	StateOnlineSyncing State = "online-syncing"
)

// CycleRunner runs one full pull+push cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Options configure the scheduler intervals.
type Options struct {
	// SyncInterval is the recurring cycle period while online (default 30s).
	SyncInterval time.Duration

	// OnlineCheckInterval is how often remote reachability is probed
	// (default 3s).
	OnlineCheckInterval time.Duration

	// WriteDelay is the debounce before an opportunistic sync after a
	// local write (default 100ms).
	WriteDelay time.Duration
}

func (o *Options) applyDefaults() {
	if o.SyncInterval <= 0 {
		o.SyncInterval = 30 * time.Second
	}
	if o.OnlineCheckInterval <= 0 {
		o.OnlineCheckInterval = 3 * time.Second
	}
	if o.WriteDelay <= 0 {
		o.WriteDelay = 100 * time.Millisecond
	}
}

// Scheduler owns the sync timers and the connectivity state machine.
type Scheduler struct {
	runner CycleRunner
	pinger remote.Pinger
	opts   Options
	logger logging.Logger

	online  atomic.Bool
	syncing atomic.Bool

	trigger chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	debounce *time.Timer
	started  bool
}

// New returns a stopped Scheduler.
func New(runner CycleRunner, pinger remote.Pinger, opts Options, logger logging.Logger) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{
		runner:  runner,
		pinger:  pinger,
		opts:    opts,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the probe/timer loop. It returns immediately; the first
// connectivity probe happens right away.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop terminates the loop and waits for any dispatched cycle to finish.
// A cycle already running is not cancelled; it runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	probe := time.NewTicker(s.opts.OnlineCheckInterval)
	defer probe.Stop()

	syncTicker := time.NewTicker(s.opts.SyncInterval)
	syncTicker.Stop()
	tickerRunning := false

	s.checkConnectivity(ctx, syncTicker, &tickerRunning)

	for {
		select {
		case <-probe.C:
			s.checkConnectivity(ctx, syncTicker, &tickerRunning)

		case <-syncTicker.C:
			// a tick buffered just before connectivity dropped is stale
			if s.online.Load() {
				s.runCycle(ctx)
			}

		case <-s.trigger:
			if s.online.Load() {
				s.runCycle(ctx)
			}

		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// checkConnectivity probes the remote store and applies the state
// transitions: restored connectivity starts the recurring timer and runs an
// immediate cycle; lost connectivity stops the timer. Queued local writes
// keep accumulating while offline.
func (s *Scheduler) checkConnectivity(ctx context.Context, syncTicker *time.Ticker, tickerRunning *bool) {
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.OnlineCheckInterval)
	err := s.pinger.Ping(probeCtx)
	cancel()

	wasOnline := s.online.Load()
	isOnline := err == nil

	if isOnline == wasOnline {
		return
	}
	s.online.Store(isOnline)

	if isOnline {
		s.logger.Info(ctx, "connectivity restored, starting sync timer")
		syncTicker.Reset(s.opts.SyncInterval)
		*tickerRunning = true
		s.runCycle(ctx)
		return
	}

	s.logger.Warn(ctx, "connectivity lost, stopping sync timer", "error", err)
	if *tickerRunning {
		syncTicker.Stop()
		*tickerRunning = false
	}
}

// runCycle executes one cycle under the single-flight guard. A tick or
// trigger arriving mid-cycle is a no-op.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.syncing.CompareAndSwap(false, true) {
		return
	}
	defer s.syncing.Store(false)

	if err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Error(ctx, "sync cycle failed", "error", err)
	}
}

// NotifyLocalWrite schedules a short-delay opportunistic sync so
// user-visible actions propagate quickly without making every write
// synchronous. Consecutive writes within the delay coalesce.
func (s *Scheduler) NotifyLocalWrite() {
	if !s.online.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.opts.WriteDelay, func() {
		select {
		case s.trigger <- struct{}{}:
		default:
		}
	})
}

// ForceSync runs an out-of-band cycle immediately if online and not already
// syncing; otherwise it is a no-op.
func (s *Scheduler) ForceSync(ctx context.Context) {
	if !s.online.Load() {
		return
	}
	s.runCycle(ctx)
}

// Online reports the last observed connectivity state.
func (s *Scheduler) Online() bool {
	return s.online.Load()
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	if !s.online.Load() {
		return StateOffline
	}
	if s.syncing.Load() {
		return StateOnlineSyncing
	}
	return StateOnlineIdle
}

// SetOnline overrides the observed connectivity state. Intended for tests
// and for hosts with their own connectivity signal.
func (s *Scheduler) SetOnline(online bool) {
	s.online.Store(online)
}
