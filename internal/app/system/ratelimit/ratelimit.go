// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration // buckets untouched this long are evicted
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// New creates a limiter allowing perWindow requests per window for each key,
// with the full allowance available as a burst.
func New(perWindow int, window time.Duration) *Limiter {
	if perWindow < 1 {
		perWindow = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(perWindow)),
		burst:   perWindow,
		idle:    window * 2,
		now:     time.Now,
	}
}

// Allow reports whether a request from key may proceed, consuming a token.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Reset clears the bucket for key.
// Used after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Sweep evicts buckets idle for longer than twice the window and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	n := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For is a comma-separated list; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter throttles login attempts per client IP and per username.
type LoginLimiter struct {
	ipLimiter   *Limiter
	userLimiter *Limiter
}

// NewLoginLimiter allows perMinute attempts per IP per minute and half that
// (at least one) per username per minute.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	perUser := perMinute / 2
	if perUser < 1 {
		perUser = 1
	}
	return &LoginLimiter{
		ipLimiter:   New(perMinute, time.Minute),
		userLimiter: New(perUser, time.Minute),
	}
}

// Check reports whether a login attempt should be allowed. The reason is
// for logs only; users always see the generic login error.
func (ll *LoginLimiter) Check(r *http.Request, username string) (bool, string) {
	if !ll.ipLimiter.Allow(ClientIP(r)) {
		return false, "ip"
	}
	if key := normalizeUser(username); key != "" {
		if !ll.userLimiter.Allow(key) {
			return false, "username"
		}
	}
	return true, ""
}

// ResetUser clears the per-username bucket after a successful login.
func (ll *LoginLimiter) ResetUser(username string) {
	if key := normalizeUser(username); key != "" {
		ll.userLimiter.Reset(key)
	}
}

// Sweep evicts idle buckets from both limiters.
func (ll *LoginLimiter) Sweep() int {
	return ll.ipLimiter.Sweep() + ll.userLimiter.Sweep()
}

func normalizeUser(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
