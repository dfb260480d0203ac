package reqlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/reqlog"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	h := reqlog.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqlog.ID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected a uuid in context, got %q", seen)
	}
	if got := rec.Header().Get(reqlog.Header); got != seen {
		t.Errorf("response header: got %q, want %q", got, seen)
	}
}

func TestRequestID_ReusesValidIncoming(t *testing.T) {
	in := uuid.NewString()
	var seen string
	h := reqlog.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqlog.ID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(reqlog.Header, in)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != in {
		t.Errorf("got %q, want incoming %q", seen, in)
	}
}

func TestRequestID_ReplacesMalformedIncoming(t *testing.T) {
	var seen string
	h := reqlog.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqlog.ID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(reqlog.Header, "abc\nforged-log-line")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("malformed id should be replaced, got %q", seen)
	}
}

func TestMiddleware_LogLevels(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  zapcore.Level
	}{
		{"/dashboard", http.StatusOK, zapcore.InfoLevel},
		{"/login", http.StatusUnauthorized, zapcore.WarnLevel},
		{"/dashboard/panels", http.StatusBadGateway, zapcore.ErrorLevel},
		{"/static/app.css", http.StatusOK, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := reqlog.RequestID(reqlog.Middleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Level != tt.level {
				t.Errorf("level: got %v, want %v", e.Level, tt.level)
			}
			ctx := e.ContextMap()
			if ctx["status"] != int64(tt.status) {
				t.Errorf("status field: got %v", ctx["status"])
			}
			if ctx["request_id"] == "" {
				t.Error("expected request_id field")
			}
		})
	}
}

func TestMiddleware_LogsUserSetByLaterMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	// Stands in for the session loader: it swaps in a request carrying the user.
	loadUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, auth.WithTestUser(r, &auth.SessionUser{Name: "asha"}))
		})
	}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := reqlog.RequestID(reqlog.Middleware(zap.New(core))(loadUser(reqlog.TagUser(final))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/dashboard", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user"]; got != "asha" {
		t.Errorf("user field: got %v, want asha", got)
	}
}

func TestMiddleware_AnonymousHasNoUserField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := reqlog.Middleware(zap.New(core))(reqlog.TagUser(final))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/login", nil))

	if _, ok := logs.All()[0].ContextMap()["user"]; ok {
		t.Error("anonymous request should not carry a user field")
	}
}
