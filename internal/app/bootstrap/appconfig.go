// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - Request body size limits
//
// AppConfig is where everything specific to dexdash lives: where the
// analytics backend is, how the local session cookie behaves, and the
// optional audit database.
type AppConfig struct {
	// Analytics backend
	APIBaseURL string        `validate:"required"`      // e.g. http://localhost:8000/api/
	APITimeout time.Duration `validate:"gt=0"`          // per-request upstream timeout
	LoginRole  string        `validate:"required,max=64"` // role sent with auth/login

	// Session management configuration
	SessionKey    string        `validate:"required"` // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: dexdash-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration `validate:"gt=0"` // Cookie lifetime

	// Optional MongoDB for login records and activity sessions.
	// An empty URI disables both.
	MongoURI      string
	MongoDatabase string `validate:"required_with=MongoURI"`

	// Activity sessions
	SessionIdleTimeout     time.Duration `validate:"gt=0"` // close activity sessions idle this long
	SessionCleanupInterval time.Duration `validate:"gt=0"` // how often the cleanup worker runs

	// Login throttling
	LoginRatePerMinute int `validate:"gte=1"`

	// Branding
	SiteName string
}

// AuditEnabled reports whether a Mongo database is configured.
func (c AppConfig) AuditEnabled() bool {
	return c.MongoURI != ""
}
