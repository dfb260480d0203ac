// Package dashload runs the dashboard's data-loading sequence: four
// independent backend reads issued together, joined before rendering.
//
// Each read owns exactly one field of the Snapshot and replaces it
// wholesale on success. A failed read leaves its field at the zero value,
// is logged, and is recorded in Failures. The loading flag is cleared once,
// after every read has settled, whatever the individual outcomes.
package dashload

import (
	"context"
	"sync"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resource names one of the four dashboard reads.
type Resource string

const (
	ResourceSummary     Resource = "summary"
	ResourceStateWise   Resource = "state-wise"
	ResourceMonthWise   Resource = "month-wise"
	ResourceScoreRanges Resource = "score-ranges"
)

// Resources lists every read in display order.
var Resources = []Resource{ResourceSummary, ResourceStateWise, ResourceMonthWise, ResourceScoreRanges}

// Source is the subset of the analytics client the loader needs.
type Source interface {
	Summary(ctx context.Context, creds analyticsapi.Credentials) (analyticsapi.Summary, error)
	StateWise(ctx context.Context, creds analyticsapi.Credentials) ([]analyticsapi.StateTotal, error)
	MonthWise(ctx context.Context, creds analyticsapi.Credentials) ([]analyticsapi.MonthCount, error)
	ScoreRanges(ctx context.Context, creds analyticsapi.Credentials) ([]analyticsapi.ScoreRange, error)
}

// Snapshot is the dashboard view state for one request.
type Snapshot struct {
	Summary     analyticsapi.Summary
	StateWise   []analyticsapi.StateTotal
	MonthWise   []analyticsapi.MonthCount
	ScoreRanges []analyticsapi.ScoreRange

	mu           sync.Mutex
	failures     map[Resource]error
	unauthorized bool

	loading    bool
	settleOnce sync.Once
	ctx        context.Context
}

// NewSnapshot returns an empty snapshot in the loading state, tied to ctx.
func NewSnapshot(ctx context.Context) *Snapshot {
	return &Snapshot{loading: true, ctx: ctx}
}

// Loading reports whether the reads are still outstanding.
func (s *Snapshot) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Unauthorized reports whether any read was rejected as unauthenticated.
func (s *Snapshot) Unauthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthorized
}

// Failures returns a copy of the per-resource errors.
func (s *Snapshot) Failures() map[Resource]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Resource]error, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	return out
}

// Failed reports whether the given read failed.
func (s *Snapshot) Failed(r Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.failures[r]
	return ok
}

// Alive reports whether the request that owns the snapshot is still live.
// Callers check it before rendering; a torn-down view gets nothing.
func (s *Snapshot) Alive() bool {
	return s.ctx == nil || s.ctx.Err() == nil
}

func (s *Snapshot) fail(r Resource, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = make(map[Resource]error, len(Resources))
	}
	s.failures[r] = err
	if analyticsapi.IsUnauthorized(err) {
		s.unauthorized = true
	}
}

// settle clears the loading flag. It reports true only the first time.
func (s *Snapshot) settle() bool {
	first := false
	s.settleOnce.Do(func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		first = true
	})
	return first
}

// Loader runs the four reads against a Source.
type Loader struct {
	src     Source
	log     *zap.Logger
	timeout time.Duration

	// OnSettled, when set, is called exactly once per Load after the join.
	OnSettled func(*Snapshot)
}

// New builds a Loader. timeout bounds the whole sequence; zero means the
// parent context alone decides.
func New(src Source, timeout time.Duration, logger *zap.Logger) *Loader {
	return &Loader{src: src, log: logger, timeout: timeout}
}

// Load issues the four reads concurrently and returns once all of them have
// settled. It never returns an error: failures are in the snapshot.
//
// Cancelling ctx (for example when the browser goes away) aborts the
// in-flight reads; the snapshot then reports !Alive().
func (l *Loader) Load(ctx context.Context, creds analyticsapi.Credentials) *Snapshot {
	snap := NewSnapshot(ctx)

	fetchCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	// Every goroutine returns nil so one failure never cancels the others.
	var g errgroup.Group

	g.Go(func() error {
		v, err := l.src.Summary(fetchCtx, creds)
		if err != nil {
			l.record(snap, ResourceSummary, err)
			return nil
		}
		snap.Summary = v
		return nil
	})
	g.Go(func() error {
		v, err := l.src.StateWise(fetchCtx, creds)
		if err != nil {
			l.record(snap, ResourceStateWise, err)
			return nil
		}
		snap.StateWise = v
		return nil
	})
	g.Go(func() error {
		v, err := l.src.MonthWise(fetchCtx, creds)
		if err != nil {
			l.record(snap, ResourceMonthWise, err)
			return nil
		}
		snap.MonthWise = v
		return nil
	})
	g.Go(func() error {
		v, err := l.src.ScoreRanges(fetchCtx, creds)
		if err != nil {
			l.record(snap, ResourceScoreRanges, err)
			return nil
		}
		snap.ScoreRanges = v
		return nil
	})

	_ = g.Wait()

	if snap.settle() && l.OnSettled != nil {
		l.OnSettled(snap)
	}
	return snap
}

func (l *Loader) record(snap *Snapshot, r Resource, err error) {
	snap.fail(r, err)
	if analyticsapi.IsUnauthorized(err) {
		l.log.Info("dashboard read rejected as unauthorized",
			zap.String("resource", string(r)),
			zap.Error(err))
		return
	}
	l.log.Error("dashboard read failed",
		zap.String("resource", string(r)),
		zap.Error(err))
}
