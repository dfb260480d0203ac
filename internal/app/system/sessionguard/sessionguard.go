// Package sessionguard asks the analytics backend whether a user's upstream
// session is still valid.
//
// A Verdict is either authenticated (the backend named an identity) or not.
// Anything else collapses to "not authenticated": an empty identity, a
// 401/403, or a transport failure. The guard fails closed.
package sessionguard

import (
	"context"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"go.uber.org/zap"
)

// Checker is the subset of the analytics client the guard needs.
type Checker interface {
	CheckSession(ctx context.Context, creds analyticsapi.Credentials) (analyticsapi.Identity, error)
}

// Verdict is the outcome of one session check.
type Verdict struct {
	Identity      analyticsapi.Identity
	Authenticated bool
	Err           error // non-nil when the check itself failed
}

// Guard runs session checks.
type Guard struct {
	checker Checker
	log     *zap.Logger
}

// New builds a Guard.
func New(checker Checker, logger *zap.Logger) *Guard {
	return &Guard{checker: checker, log: logger}
}

// Check asks the backend about creds. Requests without credentials are
// rejected without a round trip.
func (g *Guard) Check(ctx context.Context, creds analyticsapi.Credentials) Verdict {
	if len(creds) == 0 {
		return Verdict{}
	}

	id, err := g.checker.CheckSession(ctx, creds)
	if err != nil {
		if analyticsapi.IsUnauthorized(err) {
			g.log.Info("session check rejected", zap.Error(err))
			return Verdict{}
		}
		g.log.Warn("session check failed", zap.Error(err))
		return Verdict{Err: err}
	}

	if !id.Authenticated() {
		return Verdict{}
	}
	return Verdict{Identity: id, Authenticated: true}
}

// CheckAsync starts Check in its own goroutine and returns a channel that
// receives exactly one Verdict.
func (g *Guard) CheckAsync(ctx context.Context, creds analyticsapi.Credentials) <-chan Verdict {
	out := make(chan Verdict, 1)
	go func() {
		out <- g.Check(ctx, creds)
	}()
	return out
}
