// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	dashboardfeature "github.com/dexit/dexdash/internal/app/features/dashboard"
	_ "github.com/dexit/dexdash/internal/app/features/dashboard/views"
	errorsfeature "github.com/dexit/dexdash/internal/app/features/errors"
	healthfeature "github.com/dexit/dexdash/internal/app/features/health"
	heartbeatfeature "github.com/dexit/dexdash/internal/app/features/heartbeat"
	homefeature "github.com/dexit/dexdash/internal/app/features/home"
	loginfeature "github.com/dexit/dexdash/internal/app/features/login"
	logoutfeature "github.com/dexit/dexdash/internal/app/features/logout"
	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/dashload"
	"github.com/dexit/dexdash/internal/app/system/reqlog"
	"github.com/dexit/dexdash/internal/app/system/sessionguard"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// dexdash builds one analytics client shared by every feature, boots the
// template engine, applies request logging and session middleware, and mounts
// the login, logout, dashboard and heartbeat features.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	api, err := analyticsapi.New(analyticsapi.Options{
		BaseURL:   appCfg.APIBaseURL,
		Timeout:   appCfg.APITimeout,
		LoginRole: appCfg.LoginRole,
	}, logger)
	if err != nil {
		logger.Error("analytics client init failed", zap.Error(err))
		return nil, err
	}

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	return newRouter(routerDeps{
		api:        api,
		sessionMgr: sessionMgr,
		deps:       deps,
		role:       appCfg.LoginRole,
	}, logger), nil
}

// routerDeps is everything newRouter needs beyond the logger.
type routerDeps struct {
	api        *analyticsapi.Client
	sessionMgr *auth.SessionManager
	deps       DBDeps
	role       string
}

func newRouter(d routerDeps, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)
	guard := sessionguard.New(d.api, logger)
	loader := dashload.New(d.api, timeouts.Upstream(), logger)
	loginStore, sessStore := d.deps.stores()

	r := chi.NewRouter()

	// Request IDs and access logs first so every later log line carries the ID.
	// LoadSessionUser makes the current user available via auth.CurrentUser(r);
	// TagUser hands the name back to the access log.
	r.Use(reqlog.RequestID, reqlog.Middleware(logger), d.sessionMgr.LoadSessionUser, reqlog.TagUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(d.api, d.deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	homeHandler := homefeature.NewHandler(logger)
	r.Get("/", homeHandler.ServeRoot)

	// Authentication
	loginHandler := loginfeature.NewHandler(d.api, guard, d.sessionMgr, errLog, loginLimiter, loginStore, sessStore, d.role, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(d.api, d.sessionMgr, sessStore, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	dashboardHandler := dashboardfeature.NewHandler(loader, guard, d.sessionMgr, sessStore, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, d.sessionMgr))

	heartbeatHandler := heartbeatfeature.NewHandler(sessStore, d.sessionMgr, logger)
	r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler, d.sessionMgr))

	return r
}
