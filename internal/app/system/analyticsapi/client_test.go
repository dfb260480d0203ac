package analyticsapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, r chi.Router) *analyticsapi.Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := analyticsapi.New(analyticsapi.Options{
		BaseURL: srv.URL + "/api/",
		Timeout: 2 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSummary_DecodesAndForwardsCookie(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/stats/summary", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("token")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"registered": 120, "enrolled": 80, "avg": 71.5, "subjects": 6})
	})
	client := newTestClient(t, r)

	creds := analyticsapi.Credentials{{Name: "token", Value: "abc"}}
	got, err := client.Summary(context.Background(), creds)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	want := analyticsapi.Summary{Registered: 120, Enrolled: 80, Avg: 71.5, Subjects: 6}
	if got != want {
		t.Errorf("Summary: got %+v, want %+v", got, want)
	}
}

func TestSeries_Decode(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/registrations/state-wise", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"state": "Kerala", "total": 12}, {"state": "Goa", "total": 3}})
	})
	r.Get("/api/registrations/month-wise", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"month": "Jan", "count": 4}})
	})
	r.Get("/api/scores/range", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"score_range": "0-10", "student_count": 2}, {"score_range": "10-20", "student_count": 9}})
	})
	client := newTestClient(t, r)
	ctx := context.Background()

	states, err := client.StateWise(ctx, nil)
	if err != nil {
		t.Fatalf("StateWise failed: %v", err)
	}
	if len(states) != 2 || states[0].State != "Kerala" || states[0].Total != 12 {
		t.Errorf("StateWise: got %+v", states)
	}

	months, err := client.MonthWise(ctx, nil)
	if err != nil {
		t.Fatalf("MonthWise failed: %v", err)
	}
	if len(months) != 1 || months[0].Month != "Jan" || months[0].Count != 4 {
		t.Errorf("MonthWise: got %+v", months)
	}

	ranges, err := client.ScoreRanges(ctx, nil)
	if err != nil {
		t.Fatalf("ScoreRanges failed: %v", err)
	}
	if len(ranges) != 2 || ranges[1].Range != "10-20" || ranges[1].Students != 9 {
		t.Errorf("ScoreRanges: got %+v", ranges)
	}
}

func TestGet_UnauthorizedStatuses(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		r := chi.NewRouter()
		r.Get("/api/stats/summary", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		client := newTestClient(t, r)

		_, err := client.Summary(context.Background(), nil)
		if !analyticsapi.IsUnauthorized(err) {
			t.Errorf("status %d: expected ErrUnauthorized, got %v", code, err)
		}

		var se *analyticsapi.StatusError
		if !errors.As(err, &se) || se.StatusCode != code {
			t.Errorf("status %d: expected StatusError with code, got %v", code, err)
		}
	}
}

func TestGet_ServerErrorIsNotUnauthorized(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/scores/range", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := newTestClient(t, r)

	_, err := client.ScoreRanges(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if analyticsapi.IsUnauthorized(err) {
		t.Error("500 must not be reported as unauthorized")
	}
}

func TestGet_MalformedJSON(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/registrations/month-wise", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"month":`))
	})
	client := newTestClient(t, r)

	if _, err := client.MonthWise(context.Background(), nil); err == nil {
		t.Error("expected decode error")
	}
}

func TestCheckSession(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantUser string
	}{
		{"identity", `{"username":"asha","role":"USER"}`, "asha"},
		{"empty body", ``, ""},
		{"null", `null`, ""},
		{"no username", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(t, r)

			id, err := client.CheckSession(context.Background(), nil)
			if err != nil {
				t.Fatalf("CheckSession failed: %v", err)
			}
			if id.Username != tt.wantUser {
				t.Errorf("Username: got %q, want %q", id.Username, tt.wantUser)
			}
			if id.Authenticated() != (tt.wantUser != "") {
				t.Errorf("Authenticated: got %v", id.Authenticated())
			}
		})
	}
}

func TestLogin_ReturnsCookiesAndSendsRole(t *testing.T) {
	var got analyticsapi.LoginRequest
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "xyz", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, r)

	creds, err := client.Login(context.Background(), "asha", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.Role != analyticsapi.DefaultLoginRole {
		t.Errorf("Role: got %q, want %q", got.Role, analyticsapi.DefaultLoginRole)
	}
	if len(creds) != 1 || creds[0].Name != "token" || creds[0].Value != "xyz" {
		t.Errorf("credentials: got %+v", creds)
	}

	if _, err := client.Login(context.Background(), "asha", "wrong"); !analyticsapi.IsUnauthorized(err) {
		t.Errorf("wrong password: expected unauthorized, got %v", err)
	}
}

func TestLogout_ForwardsCookie(t *testing.T) {
	called := false
	r := chi.NewRouter()
	r.Get("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("token"); err == nil && c.Value == "xyz" {
			called = true
		}
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, r)

	if err := client.Logout(context.Background(), analyticsapi.Credentials{{Name: "token", Value: "xyz"}}); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !called {
		t.Error("expected backend logout to receive the session cookie")
	}
}

func TestClient_DoesNotShareCookiesBetweenCalls(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "first", Path: "/"})
	})
	r.Get("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("token"); err == nil {
			writeJSON(w, map[string]string{"username": "leaked"})
			return
		}
		writeJSON(w, map[string]string{})
	})
	client := newTestClient(t, r)

	if _, err := client.Login(context.Background(), "a", "b"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	id, err := client.CheckSession(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckSession failed: %v", err)
	}
	if id.Authenticated() {
		t.Error("cookies from one login must not be replayed on other calls")
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"http://localhost:8000/api/", false},
		{"https://analytics.example.com/", false},
		{"localhost:8000", true},
		{"ftp://example.com/", true},
		{"", true},
	}
	for _, tt := range tests {
		err := analyticsapi.ValidateBaseURL(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBaseURL(%q): err=%v, wantErr=%v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestPing_AnyStatusIsReachable(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := newTestClient(t, r)

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: expected reachable, got %v", err)
	}
}
