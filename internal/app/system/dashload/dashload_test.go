package dashload_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/dashload"
	"go.uber.org/zap"
)

// fakeSource lets each read succeed, fail, or block until released.
type fakeSource struct {
	errs     map[dashload.Resource]error
	delay    map[dashload.Resource]time.Duration
	inFlight int32
	maxSeen  int32
	gate     chan struct{} // when non-nil, every read waits on it
}

func (f *fakeSource) enter(ctx context.Context, r dashload.Resource) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d := f.delay[r]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.errs[r]
}

func (f *fakeSource) Summary(ctx context.Context, _ analyticsapi.Credentials) (analyticsapi.Summary, error) {
	if err := f.enter(ctx, dashload.ResourceSummary); err != nil {
		return analyticsapi.Summary{}, err
	}
	return analyticsapi.Summary{Registered: 10, Enrolled: 7, Avg: 64.5, Subjects: 3}, nil
}

func (f *fakeSource) StateWise(ctx context.Context, _ analyticsapi.Credentials) ([]analyticsapi.StateTotal, error) {
	if err := f.enter(ctx, dashload.ResourceStateWise); err != nil {
		return nil, err
	}
	return []analyticsapi.StateTotal{{State: "Kerala", Total: 6}, {State: "Goa", Total: 4}}, nil
}

func (f *fakeSource) MonthWise(ctx context.Context, _ analyticsapi.Credentials) ([]analyticsapi.MonthCount, error) {
	if err := f.enter(ctx, dashload.ResourceMonthWise); err != nil {
		return nil, err
	}
	return []analyticsapi.MonthCount{{Month: "Jan", Count: 3}}, nil
}

func (f *fakeSource) ScoreRanges(ctx context.Context, _ analyticsapi.Credentials) ([]analyticsapi.ScoreRange, error) {
	if err := f.enter(ctx, dashload.ResourceScoreRanges); err != nil {
		return nil, err
	}
	return []analyticsapi.ScoreRange{{Range: "0-10", Students: 1}}, nil
}

func TestLoad_AllSucceed(t *testing.T) {
	src := &fakeSource{}
	l := dashload.New(src, time.Second, zap.NewNop())

	snap := l.Load(context.Background(), nil)

	if snap.Loading() {
		t.Error("Loading should be cleared after Load returns")
	}
	if snap.Summary.Registered != 10 || snap.Summary.Avg != 64.5 {
		t.Errorf("Summary: got %+v", snap.Summary)
	}
	if len(snap.StateWise) != 2 || len(snap.MonthWise) != 1 || len(snap.ScoreRanges) != 1 {
		t.Errorf("series lengths: %d %d %d", len(snap.StateWise), len(snap.MonthWise), len(snap.ScoreRanges))
	}
	if len(snap.Failures()) != 0 {
		t.Errorf("Failures: got %v", snap.Failures())
	}
	if snap.Unauthorized() {
		t.Error("Unauthorized should be false")
	}
}

func TestLoad_IssuesReadsConcurrently(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	l := dashload.New(src, 2*time.Second, zap.NewNop())

	done := make(chan *dashload.Snapshot)
	go func() { done <- l.Load(context.Background(), nil) }()

	// All four must be in flight at the same time before any is released.
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&src.inFlight) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 4 concurrent reads, saw %d", atomic.LoadInt32(&src.inFlight))
		}
		time.Sleep(time.Millisecond)
	}
	close(src.gate)

	snap := <-done
	if snap.Loading() {
		t.Error("Loading should be cleared")
	}
	if src.maxSeen != 4 {
		t.Errorf("max concurrent reads: got %d, want 4", src.maxSeen)
	}
}

func TestLoad_PartialFailureKeepsOthers(t *testing.T) {
	src := &fakeSource{errs: map[dashload.Resource]error{
		dashload.ResourceMonthWise: errors.New("boom"),
	}}
	l := dashload.New(src, time.Second, zap.NewNop())

	snap := l.Load(context.Background(), nil)

	if snap.Loading() {
		t.Error("a failed read must not keep the dashboard loading")
	}
	if snap.MonthWise != nil {
		t.Errorf("failed read should leave its field empty, got %+v", snap.MonthWise)
	}
	if !snap.Failed(dashload.ResourceMonthWise) {
		t.Error("expected month-wise failure to be recorded")
	}
	if snap.Summary.Registered != 10 || len(snap.StateWise) != 2 || len(snap.ScoreRanges) != 1 {
		t.Error("successful reads should still populate their fields")
	}
	if snap.Unauthorized() {
		t.Error("a generic failure is not unauthorized")
	}
}

func TestLoad_AllFail_StillSettles(t *testing.T) {
	boom := errors.New("down")
	src := &fakeSource{errs: map[dashload.Resource]error{
		dashload.ResourceSummary:     boom,
		dashload.ResourceStateWise:   boom,
		dashload.ResourceMonthWise:   boom,
		dashload.ResourceScoreRanges: boom,
	}}
	l := dashload.New(src, time.Second, zap.NewNop())

	snap := l.Load(context.Background(), nil)

	if snap.Loading() {
		t.Error("Loading should clear even when every read fails")
	}
	if len(snap.Failures()) != 4 {
		t.Errorf("Failures: got %d, want 4", len(snap.Failures()))
	}
	if snap.Summary != (analyticsapi.Summary{}) {
		t.Errorf("Summary should stay zeroed, got %+v", snap.Summary)
	}
}

func TestLoad_UnauthorizedFromAnyRead(t *testing.T) {
	for _, r := range dashload.Resources {
		t.Run(string(r), func(t *testing.T) {
			src := &fakeSource{errs: map[dashload.Resource]error{
				r: &analyticsapi.StatusError{Method: "GET", Path: string(r), StatusCode: http.StatusForbidden},
			}}
			l := dashload.New(src, time.Second, zap.NewNop())

			snap := l.Load(context.Background(), nil)
			if !snap.Unauthorized() {
				t.Errorf("403 from %s should mark the snapshot unauthorized", r)
			}
		})
	}
}

func TestLoad_OnSettledCalledExactlyOnce(t *testing.T) {
	src := &fakeSource{
		errs:  map[dashload.Resource]error{dashload.ResourceSummary: errors.New("x")},
		delay: map[dashload.Resource]time.Duration{dashload.ResourceScoreRanges: 20 * time.Millisecond},
	}
	l := dashload.New(src, time.Second, zap.NewNop())

	var mu sync.Mutex
	calls := 0
	var loadingAtSettle bool
	l.OnSettled = func(s *dashload.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		loadingAtSettle = s.Loading()
		// The slowest read must have landed before the join fired.
		if len(s.ScoreRanges) != 1 {
			t.Error("OnSettled fired before all reads settled")
		}
	}

	l.Load(context.Background(), nil)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("OnSettled calls: got %d, want 1", calls)
	}
	if loadingAtSettle {
		t.Error("Loading should already be false inside OnSettled")
	}
}

func TestLoad_CancelledRequestIsNotAlive(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	l := dashload.New(src, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *dashload.Snapshot)
	go func() { done <- l.Load(ctx, nil) }()

	cancel()

	select {
	case snap := <-done:
		if snap.Alive() {
			t.Error("snapshot of a cancelled request must not be alive")
		}
		if snap.Loading() {
			t.Error("cancelled load still settles")
		}
		if len(snap.Failures()) != 4 {
			t.Errorf("Failures: got %d, want 4", len(snap.Failures()))
		}
	case <-time.After(time.Second):
		t.Fatal("Load did not return after cancellation")
	}
}

func TestLoad_TimeoutBoundsSlowRead(t *testing.T) {
	src := &fakeSource{delay: map[dashload.Resource]time.Duration{dashload.ResourceStateWise: time.Second}}
	l := dashload.New(src, 30*time.Millisecond, zap.NewNop())

	start := time.Now()
	snap := l.Load(context.Background(), nil)

	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Load took %v; timeout not applied", time.Since(start))
	}
	if !snap.Failed(dashload.ResourceStateWise) {
		t.Error("slow read should have failed on timeout")
	}
	if !snap.Alive() {
		t.Error("the request itself is still alive after an upstream timeout")
	}
}
