// Package timeouts provides centralized timeout values for handler operations.
//
// Handlers wrap their I/O in context.WithTimeout using these values so that
// a slow analytics backend or audit database cannot hold a request open
// indefinitely. Values are set once at startup via Configure; until then the
// defaults apply.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks against the backend and Mongo
//   - Upstream: one dashboard page worth of backend reads (all four run under it)
//   - Login: the auth/login round trip
//   - Store: a single audit or activity-session write
//   - Cleanup: one pass of the session cleanup worker
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultUpstream = 15 * time.Second
	DefaultLogin    = 10 * time.Second
	DefaultStore    = 5 * time.Second
	DefaultCleanup  = 30 * time.Second
)

var mu sync.RWMutex

var (
	ping     = DefaultPing
	upstream = DefaultUpstream
	login    = DefaultLogin
	store    = DefaultStore
	cleanup  = DefaultCleanup
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Upstream returns the timeout for loading the dashboard data.
func Upstream() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return upstream
}

// Login returns the timeout for the backend login and logout calls.
func Login() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return login
}

// Store returns the timeout for a single Mongo write.
func Store() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return store
}

// Cleanup returns the timeout for one background cleanup pass.
func Cleanup() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return cleanup
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping     time.Duration
	Upstream time.Duration
	Login    time.Duration
	Store    time.Duration
	Cleanup  time.Duration
}

// Configure sets custom timeout values. Zero values in cfg keep the current
// value. Call during startup before handlers are built.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Upstream > 0 {
		upstream = cfg.Upstream
	}
	if cfg.Login > 0 {
		login = cfg.Login
	}
	if cfg.Store > 0 {
		store = cfg.Store
	}
	if cfg.Cleanup > 0 {
		cleanup = cfg.Cleanup
	}
}

// Reset restores all timeouts to their default values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	upstream = DefaultUpstream
	login = DefaultLogin
	store = DefaultStore
	cleanup = DefaultCleanup
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:     ping,
		Upstream: upstream,
		Login:    login,
		Store:    store,
		Cleanup:  cleanup,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function
// that logs a warning if the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Upstream(), h.Log, "dashboard load")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
