package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Fake backend credentials.
const (
	SessionCookie = "token"
	ValidToken    = "valid-token"
	ValidUser     = "asha"
	ValidPassword = "correct-horse"
)

// FakeBackend is an in-process analytics backend. Every data endpoint
// requires the ValidToken cookie unless overridden with SetStatus.
type FakeBackend struct {
	*httptest.Server

	mu      sync.Mutex
	status  map[string]int
	delay   map[string]time.Duration
	hits    map[string]int
	logouts int

	Summary     analyticsapi.Summary
	StateWise   []analyticsapi.StateTotal
	MonthWise   []analyticsapi.MonthCount
	ScoreRanges []analyticsapi.ScoreRange
}

// NewFakeBackend starts a backend with sample data. It is closed when the
// test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		status: make(map[string]int),
		delay:  make(map[string]time.Duration),
		hits:   make(map[string]int),

		Summary: analyticsapi.Summary{Registered: 1250, Enrolled: 830, Avg: 72.4, Subjects: 12},
		StateWise: []analyticsapi.StateTotal{
			{State: "Kerala", Total: 420},
			{State: "Tamil Nadu", Total: 310},
			{State: "Karnataka", Total: 205},
		},
		MonthWise: []analyticsapi.MonthCount{
			{Month: "Jan", Count: 90}, {Month: "Feb", Count: 140}, {Month: "Mar", Count: 115},
		},
		ScoreRanges: []analyticsapi.ScoreRange{
			{Range: "0-40", Students: 55}, {Range: "40-70", Students: 380}, {Range: "70-100", Students: 395},
		},
	}

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Get("/"+analyticsapi.PathSummary, fb.data(analyticsapi.PathSummary, func() any { return fb.Summary }))
		api.Get("/"+analyticsapi.PathStateWise, fb.data(analyticsapi.PathStateWise, func() any { return fb.StateWise }))
		api.Get("/"+analyticsapi.PathMonthWise, fb.data(analyticsapi.PathMonthWise, func() any { return fb.MonthWise }))
		api.Get("/"+analyticsapi.PathScoreRanges, fb.data(analyticsapi.PathScoreRanges, func() any { return fb.ScoreRanges }))
		api.Get("/"+analyticsapi.PathAuthCheck, fb.check)
		api.Post("/"+analyticsapi.PathAuthLogin, fb.login)
		api.Get("/"+analyticsapi.PathAuthLogout, fb.logout)
	})

	fb.Server = httptest.NewServer(r)
	t.Cleanup(fb.Server.Close)
	return fb
}

// BaseURL is the API root to configure clients with.
func (fb *FakeBackend) BaseURL() string { return fb.URL + "/api/" }

// Client returns an analyticsapi client pointed at the fake.
func (fb *FakeBackend) Client(t *testing.T) *analyticsapi.Client {
	t.Helper()
	c, err := analyticsapi.New(analyticsapi.Options{BaseURL: fb.BaseURL(), Timeout: 5 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("analyticsapi.New: %v", err)
	}
	return c
}

// SetStatus forces path (e.g. analyticsapi.PathSummary) to answer with code.
func (fb *FakeBackend) SetStatus(path string, code int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.status[path] = code
}

// SetDelay makes path wait d before answering.
func (fb *FakeBackend) SetDelay(path string, d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.delay[path] = d
}

// Hits reports how many times path was requested.
func (fb *FakeBackend) Hits(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[path]
}

// Logouts reports how many authenticated logouts the backend saw.
func (fb *FakeBackend) Logouts() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.logouts
}

// enter records the hit, applies any delay, and returns a forced status.
func (fb *FakeBackend) enter(r *http.Request, path string) int {
	fb.mu.Lock()
	fb.hits[path]++
	d := fb.delay[path]
	code := fb.status[path]
	fb.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
		}
	}
	return code
}

func authorized(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value == ValidToken
}

func (fb *FakeBackend) data(path string, body func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := fb.enter(r, path); code != 0 {
			w.WriteHeader(code)
			return
		}
		if !authorized(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fb.mu.Lock()
		v := body()
		fb.mu.Unlock()
		writeJSON(w, v)
	}
}

func (fb *FakeBackend) check(w http.ResponseWriter, r *http.Request) {
	if code := fb.enter(r, analyticsapi.PathAuthCheck); code != 0 {
		w.WriteHeader(code)
		return
	}
	if !authorized(r) {
		// The backend answers an anonymous check with an empty body.
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, analyticsapi.Identity{Username: ValidUser, Role: "USER"})
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	if code := fb.enter(r, analyticsapi.PathAuthLogin); code != 0 {
		w.WriteHeader(code)
		return
	}
	var req analyticsapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Username != ValidUser || req.Password != ValidPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: ValidToken, Path: "/", HttpOnly: true})
	writeJSON(w, map[string]string{"message": "ok"})
}

func (fb *FakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if code := fb.enter(r, analyticsapi.PathAuthLogout); code != 0 {
		w.WriteHeader(code)
		return
	}
	if authorized(r) {
		fb.mu.Lock()
		fb.logouts++
		fb.mu.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
