package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)

	sm, err := auth.NewSessionManager(validAppConfig().SessionKey, "dexdash-session", "", time.Hour, false, testLogger())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	r := newRouter(routerDeps{
		api:        fb.Client(t),
		sessionMgr: sm,
		role:       "USER",
	}, testLogger())
	return r, fb
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["database"] != "disabled" {
		t.Errorf("body: got %v", body)
	}
}

func TestRouter_RootRedirectsToLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location: got %q", loc)
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	r, fb := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("dashboard status: got %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/login?return=") {
		t.Errorf("dashboard Location: got %q", loc)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/heartbeat", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("heartbeat status: got %d, want 401", rec.Code)
	}

	if n := fb.Hits(analyticsapi.PathSummary); n != 0 {
		t.Errorf("backend reads without a session: %d", n)
	}
}

func TestRouter_SetsRequestID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}
