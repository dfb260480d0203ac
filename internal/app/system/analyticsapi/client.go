// Package analyticsapi is the HTTP client for the admissions analytics backend.
//
// The backend owns all statistics and the user session. dexdash talks to it
// on behalf of each signed-in user by forwarding that user's upstream session
// cookies (Credentials) with every call.
package analyticsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Backend endpoint paths, relative to the configured base URL.
const (
	PathSummary     = "stats/summary"
	PathStateWise   = "registrations/state-wise"
	PathMonthWise   = "registrations/month-wise"
	PathScoreRanges = "scores/range"
	PathAuthCheck   = "auth/check"
	PathAuthLogin   = "auth/login"
	PathAuthLogout  = "auth/logout"
)

// DefaultLoginRole is the role sent with auth/login when none is configured.
const DefaultLoginRole = "USER"

// ErrUnauthorized is matched (errors.Is) by any 401 or 403 from the backend.
var ErrUnauthorized = errors.New("analyticsapi: unauthorized")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyticsapi: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match auth failures.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// IsUnauthorized reports whether err came from a 401/403 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Credentials are the upstream session cookies of one user.
type Credentials []*http.Cookie

// Options configures a Client.
type Options struct {
	BaseURL   string        // e.g. http://localhost:8000/api/
	Timeout   time.Duration // per request; zero means no client-side timeout
	LoginRole string        // role sent with auth/login (default USER)
}

// Client issues requests to the analytics backend.
// It is safe for concurrent use; per-user state travels in Credentials.
type Client struct {
	rc        *resty.Client
	log       *zap.Logger
	loginRole string
}

// New builds a Client. The base URL must be absolute http(s).
func New(opts Options, logger *zap.Logger) (*Client, error) {
	if err := ValidateBaseURL(opts.BaseURL); err != nil {
		return nil, err
	}
	role := strings.TrimSpace(opts.LoginRole)
	if role == "" {
		role = DefaultLoginRole
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar()).
		// The default resty jar would share one user's cookies with everyone.
		SetCookieJar(nil)
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	return &Client{rc: rc, log: logger, loginRole: role}, nil
}

// ValidateBaseURL checks that raw is an absolute http or https URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q: missing host", raw)
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Summary reads                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Summary fetches the KPI block.
func (c *Client) Summary(ctx context.Context, creds Credentials) (Summary, error) {
	var out Summary
	err := c.getJSON(ctx, creds, PathSummary, &out)
	return out, err
}

// StateWise fetches registrations grouped by state.
func (c *Client) StateWise(ctx context.Context, creds Credentials) ([]StateTotal, error) {
	var out []StateTotal
	err := c.getJSON(ctx, creds, PathStateWise, &out)
	return out, err
}

// MonthWise fetches registrations grouped by month.
func (c *Client) MonthWise(ctx context.Context, creds Credentials) ([]MonthCount, error) {
	var out []MonthCount
	err := c.getJSON(ctx, creds, PathMonthWise, &out)
	return out, err
}

// ScoreRanges fetches the score histogram.
func (c *Client) ScoreRanges(ctx context.Context, creds Credentials) ([]ScoreRange, error) {
	var out []ScoreRange
	err := c.getJSON(ctx, creds, PathScoreRanges, &out)
	return out, err
}

/*─────────────────────────────────────────────────────────────────────────────*
| Auth                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// CheckSession asks the backend who owns creds. An empty body or a body
// without a username yields a zero Identity and no error.
func (c *Client) CheckSession(ctx context.Context, creds Credentials) (Identity, error) {
	var id Identity
	err := c.getJSON(ctx, creds, PathAuthCheck, &id)
	return id, err
}

// Login posts the credentials form and returns the session cookies the
// backend set. Any non-2xx answer is an error.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	body := LoginRequest{Username: username, Password: password, Role: c.loginRole}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(PathAuthLogin)
	if err != nil {
		return nil, fmt.Errorf("analyticsapi: POST %s: %w", PathAuthLogin, err)
	}
	if resp.IsError() {
		return nil, &StatusError{Method: http.MethodPost, Path: PathAuthLogin, StatusCode: resp.StatusCode()}
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		c.log.Warn("login succeeded but backend set no session cookie",
			zap.String("username", username))
	}
	return Credentials(cookies), nil
}

// Logout invalidates the upstream session.
func (c *Client) Logout(ctx context.Context, creds Credentials) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetCookies(creds).
		Get(PathAuthLogout)
	if err != nil {
		return fmt.Errorf("analyticsapi: GET %s: %w", PathAuthLogout, err)
	}
	if resp.IsError() {
		return &StatusError{Method: http.MethodGet, Path: PathAuthLogout, StatusCode: resp.StatusCode()}
	}
	return nil
}

// Ping reports whether the backend answers HTTP at all. Any status code,
// including 401, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rc.R().SetContext(ctx).Get(PathAuthCheck)
	if err != nil {
		return fmt.Errorf("analyticsapi: ping: %w", err)
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (c *Client) getJSON(ctx context.Context, creds Credentials, path string, out any) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetCookies(creds).
		Get(path)
	if err != nil {
		return fmt.Errorf("analyticsapi: GET %s: %w", path, err)
	}
	if resp.IsError() {
		return &StatusError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("analyticsapi: decode %s: %w", path, err)
	}
	return nil
}
