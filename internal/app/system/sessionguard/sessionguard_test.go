package sessionguard_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/sessionguard"
	"go.uber.org/zap"
)

type stubChecker struct {
	id    analyticsapi.Identity
	err   error
	calls int
}

func (s *stubChecker) CheckSession(context.Context, analyticsapi.Credentials) (analyticsapi.Identity, error) {
	s.calls++
	return s.id, s.err
}

var someCreds = analyticsapi.Credentials{{Name: "token", Value: "abc"}}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		id       analyticsapi.Identity
		err      error
		wantAuth bool
		wantErr  bool
	}{
		{"identity", analyticsapi.Identity{Username: "asha", Role: "USER"}, nil, true, false},
		{"empty identity", analyticsapi.Identity{}, nil, false, false},
		{"401", analyticsapi.Identity{}, &analyticsapi.StatusError{Path: "auth/check", StatusCode: http.StatusUnauthorized}, false, false},
		{"transport failure", analyticsapi.Identity{}, errors.New("connection refused"), false, true},
		{"500", analyticsapi.Identity{}, &analyticsapi.StatusError{Path: "auth/check", StatusCode: http.StatusInternalServerError}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sessionguard.New(&stubChecker{id: tt.id, err: tt.err}, zap.NewNop())

			v := g.Check(context.Background(), someCreds)
			if v.Authenticated != tt.wantAuth {
				t.Errorf("Authenticated: got %v, want %v", v.Authenticated, tt.wantAuth)
			}
			if (v.Err != nil) != tt.wantErr {
				t.Errorf("Err: got %v, wantErr %v", v.Err, tt.wantErr)
			}
			if tt.wantAuth && v.Identity.Username != tt.id.Username {
				t.Errorf("Identity: got %+v", v.Identity)
			}
		})
	}
}

func TestCheck_NoCredentialsSkipsBackend(t *testing.T) {
	stub := &stubChecker{id: analyticsapi.Identity{Username: "asha"}}
	g := sessionguard.New(stub, zap.NewNop())

	if v := g.Check(context.Background(), nil); v.Authenticated {
		t.Error("no credentials must not authenticate")
	}
	if stub.calls != 0 {
		t.Errorf("backend calls: got %d, want 0", stub.calls)
	}
}

func TestCheckAsync_DeliversOneVerdict(t *testing.T) {
	g := sessionguard.New(&stubChecker{id: analyticsapi.Identity{Username: "asha"}}, zap.NewNop())

	v := <-g.CheckAsync(context.Background(), someCreds)
	if !v.Authenticated || v.Identity.Username != "asha" {
		t.Errorf("verdict: got %+v", v)
	}
}
