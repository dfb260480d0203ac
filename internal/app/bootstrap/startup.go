// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/dexit/dexdash/internal/app/resources"
	"github.com/dexit/dexdash/internal/app/system/ratelimit"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
	"github.com/dexit/dexdash/internal/app/system/workers"
	"go.uber.org/zap"
)

// Process-wide state shared between Startup, BuildHandler and Shutdown.
var (
	loginLimiter  *ratelimit.LoginLimiter
	cleanupWorker *workers.SessionCleanup
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It loads
// the shared templates, applies timeouts and branding, and starts the
// session cleanup worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Upstream: appCfg.APITimeout})
	tc := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", tc.Ping),
		zap.Duration("upstream", tc.Upstream),
		zap.Duration("login", tc.Login),
		zap.Duration("store", tc.Store),
		zap.Duration("cleanup", tc.Cleanup))
	viewdata.SetSiteName(appCfg.SiteName)
	resources.LoadSharedTemplates()

	loginLimiter = ratelimit.NewLoginLimiter(appCfg.LoginRatePerMinute)

	var closer workers.InactiveCloser
	if _, sessStore := deps.stores(); sessStore != nil {
		closer = sessStore
	}
	cleanupWorker = workers.NewSessionCleanup(closer, logger,
		appCfg.SessionCleanupInterval, appCfg.SessionIdleTimeout, loginLimiter)
	cleanupWorker.Start()

	return nil
}
