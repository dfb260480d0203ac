// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "dexdash-session"

	isAuthKey     = "is_authenticated"
	userName      = "user_name"
	userRole      = "user_role"
	upstreamKey   = "upstream_cookies"
	activityIDKey = "activity_session_id"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we cache in the session & inject into r.Context().
// Credentials are the analytics backend's session cookies for this user.
type SessionUser struct {
	Name        string
	Role        string
	ActivityID  string // activity-session id, empty when tracking is off
	Credentials analyticsapi.Credentials
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u into the request context the way LoadSessionUser
// does. Handler tests use it to skip the cookie round trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// WithoutUser returns r with no signed-in user, for rendering a page after
// the session has been dropped mid-request.
func WithoutUser(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, nil))
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store. The cookie is signed with the
// configured key and encrypted with a key derived from it, because it
// carries the user's upstream credentials.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	log   *zap.Logger
}

// NewSessionManager builds the cookie store.
//
// In production (secure=true) cookies are Secure + SameSite=None.
// In local dev over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultSessionName
	}

	blockKey := sha256.Sum256([]byte("dexdash-session-encryption:" + sessionKey))
	store := sessions.NewCookieStore([]byte(sessionKey), blockKey[:])

	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// Name is the session cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// Store exposes the underlying cookie store (options are read by logout).
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// GetSession returns the session for r. On a decode failure the error is
// returned alongside a fresh, usable session.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SignIn marks the session authenticated for u and saves it.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.logSessionError("session cookie invalid during sign-in, using fresh session", err)
	}

	sess.Values[isAuthKey] = true
	sess.Values[userName] = u.Name
	sess.Values[userRole] = u.Role
	sess.Values[upstreamKey] = EncodeCredentials(u.Credentials)
	if u.ActivityID != "" {
		sess.Values[activityIDKey] = u.ActivityID
	} else {
		delete(sess.Values, activityIDKey)
	}

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SignOut expires the session cookie, matching the store's cookie options so
// the browser actually drops it.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.logSessionError("session decode failed during sign-out", err)
	}

	if opts := sm.store.Options; opts != nil {
		sess.Options.Domain = opts.Domain
		sess.Options.Path = opts.Path
		sess.Options.Secure = opts.Secure
		sess.Options.HttpOnly = opts.HttpOnly
		sess.Options.SameSite = opts.SameSite
	}
	sess.Options.MaxAge = -1

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	return nil
}

// LoadSessionUser injects the user into context if they are logged in.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil {
			sm.logSessionError("session cookie ignored", err)
			next.ServeHTTP(w, r)
			return
		}

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := &SessionUser{
				Name:        getString(sess, userName),
				Role:        getString(sess, userRole),
				ActivityID:  getString(sess, activityIDKey),
				Credentials: DecodeCredentials(getString(sess, upstreamKey)),
			}
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		RedirectToLogin(w, r)
	})
}

// RedirectToLogin sends the caller to /login, preserving the current URI as
// the return target. It is also used when the backend rejects a session
// that looked valid locally.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(returnURI(r))

	// HTMX: full-page client redirect (no partial swap)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}

	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Upstream credentials                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// EncodeCredentials flattens cookies to a Cookie header value.
func EncodeCredentials(creds analyticsapi.Credentials) string {
	parts := make([]string, 0, len(creds))
	for _, c := range creds {
		if c == nil || c.Name == "" {
			continue
		}
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return strings.Join(parts, "; ")
}

// DecodeCredentials is the inverse of EncodeCredentials. Malformed input
// yields no credentials.
func DecodeCredentials(s string) analyticsapi.Credentials {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	cookies, err := http.ParseCookie(s)
	if err != nil {
		return nil
	}
	return analyticsapi.Credentials(cookies)
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func (sm *SessionManager) logSessionError(msg string, err error) {
	var scErr securecookie.Error
	if errors.As(err, &scErr) && scErr.IsDecode() {
		sm.log.Debug(msg, zap.Error(err))
		return
	}
	sm.log.Warn(msg, zap.Error(err))
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

// returnURI is the page a login should come back to. HTMX partial requests
// return to the page that issued them.
func returnURI(r *http.Request) string {
	if cur := r.Header.Get("HX-Current-URL"); cur != "" {
		if u, err := url.Parse(cur); err == nil && u.Path != "" {
			return u.RequestURI()
		}
	}
	u := *r.URL
	return u.RequestURI()
}
