// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// InactiveCloser closes activity sessions idle for longer than threshold.
// *sessions.Store satisfies it.
type InactiveCloser interface {
	CloseInactive(ctx context.Context, threshold time.Duration) (int64, error)
}

// Sweeper evicts idle in-memory state. *ratelimit.LoginLimiter satisfies it.
type Sweeper interface {
	Sweep() int
}

// SessionCleanup is a background worker that closes inactive sessions and
// sweeps idle login-limiter buckets.
type SessionCleanup struct {
	sessions          InactiveCloser // nil when activity tracking is off
	sweepers          []Sweeper
	log               *zap.Logger
	interval          time.Duration
	inactiveThreshold time.Duration
	stopCh            chan struct{}
	stopOnce          sync.Once
	wg                sync.WaitGroup
}

// NewSessionCleanup creates a new session cleanup worker.
//
// Parameters:
//   - sessStore: the sessions store, or nil
//   - logger: zap logger for logging
//   - interval: how often to run cleanup (e.g., 1 minute)
//   - inactiveThreshold: how long a session must be idle before closing (e.g., 30 minutes)
//   - sweepers: in-memory state to evict on each pass
func NewSessionCleanup(sessStore InactiveCloser, logger *zap.Logger, interval, inactiveThreshold time.Duration, sweepers ...Sweeper) *SessionCleanup {
	return &SessionCleanup{
		sessions:          sessStore,
		sweepers:          sweepers,
		log:               logger,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		stopCh:            make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *SessionCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("session cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("inactive_threshold", w.inactiveThreshold),
		zap.Bool("activity_tracking", w.sessions != nil))
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call more than once.
func (w *SessionCleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("session cleanup worker stopped")
}

func (w *SessionCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (w *SessionCleanup) RunOnce() {
	for _, s := range w.sweepers {
		if n := s.Sweep(); n > 0 {
			w.log.Debug("evicted idle limiter buckets", zap.Int("count", n))
		}
	}

	if w.sessions == nil {
		return
	}

	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Cleanup(), w.log, "session cleanup")
	defer cancel()

	count, err := w.sessions.CloseInactive(ctx, w.inactiveThreshold)
	if err != nil {
		w.log.Error("failed to close inactive sessions", zap.Error(err))
		return
	}

	if count > 0 {
		w.log.Info("closed inactive sessions", zap.Int64("count", count))
	}
}
