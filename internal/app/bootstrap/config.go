// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for dexdash.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: api_base_url, session_name, etc.
//   - Environment variables: DEXDASH_API_BASE_URL, DEXDASH_SESSION_NAME, etc.
//   - Command-line flags: --api_base_url, --session_name, etc.
var appConfigKeys = []config.AppKey{
	// Analytics backend
	{Name: "api_base_url", Default: "http://localhost:8000/api/", Desc: "Analytics backend base URL (trailing slash)"},
	{Name: "api_timeout", Default: "15s", Desc: "Per-request timeout for analytics backend calls"},
	{Name: "login_role", Default: analyticsapi.DefaultLoginRole, Desc: "Role sent with auth/login"},

	// Session cookie
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "dexdash-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Optional audit database
	{Name: "mongo_uri", Default: "", Desc: "MongoDB connection URI for login records and activity sessions (blank disables)"},
	{Name: "mongo_database", Default: "dexdash", Desc: "MongoDB database name"},

	// Activity sessions
	{Name: "session_idle_timeout", Default: "30m", Desc: "Close activity sessions idle this long"},
	{Name: "session_cleanup_interval", Default: "1m", Desc: "How often the session cleanup worker runs"},

	// Login throttling
	{Name: "login_rate_per_minute", Default: 10, Desc: "Login attempts allowed per client IP per minute"},

	// Branding
	{Name: "site_name", Default: "DEX IT", Desc: "Brand shown in the sidebar and page titles"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, DEXDASH_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "DEXDASH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		APIBaseURL: appValues.String("api_base_url"),
		APITimeout: appValues.Duration("api_timeout", 15*time.Second),
		LoginRole:  appValues.String("login_role"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		SessionIdleTimeout:     appValues.Duration("session_idle_timeout", 30*time.Minute),
		SessionCleanupInterval: appValues.Duration("session_cleanup_interval", time.Minute),

		LoginRatePerMinute: appValues.Int("login_rate_per_minute"),

		SiteName: appValues.String("site_name"),
	}

	if !appCfg.AuditEnabled() {
		logger.Info("mongo_uri not set; login records and activity sessions are disabled")
	}

	return coreCfg, appCfg, nil
}

var configValidator = validator.New()

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The backend URL must be absolute http(s), durations positive, and the
// Mongo URI well formed when one is set.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := configValidator.Struct(appCfg); err != nil {
		logger.Error("invalid app config", zap.Error(err))
		return fmt.Errorf("invalid app config: %w", err)
	}

	if err := analyticsapi.ValidateBaseURL(appCfg.APIBaseURL); err != nil {
		logger.Error("invalid analytics backend URL", zap.Error(err))
		return fmt.Errorf("invalid api_base_url: %w", err)
	}

	if appCfg.AuditEnabled() {
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	}

	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in production")
	}

	return nil
}
