// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dexit/dexdash/internal/app/store/sessions"
	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/dashload"
	"github.com/dexit/dexdash/internal/app/system/sessionguard"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// Loader runs the four dashboard reads.
type Loader interface {
	Load(ctx context.Context, creds analyticsapi.Credentials) *dashload.Snapshot
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Loader     Loader
	Guard      *sessionguard.Guard
	Sessions   *sessions.Store // nil when no audit database
}

func NewHandler(loader Loader, guard *sessionguard.Guard, sessionMgr *auth.SessionManager, sessStore *sessions.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Loader:     loader,
		Guard:      guard,
		Sessions:   sessStore,
	}
}

// render and renderSnippet are swapped in tests.
var (
	render = func(w http.ResponseWriter, r *http.Request, name string, data any) {
		templates.Render(w, r, name, data)
	}
	renderSnippet = func(w http.ResponseWriter, name string, data any) {
		templates.RenderSnippet(w, name, data)
	}
)

// ServeDashboard handles GET /dashboard. It renders the shell with a
// loading placeholder that fetches the panels once the page is up.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	render(w, r, "dashboard_page", dashboardData{
		BaseVM:  viewdata.NewBaseVM(r, "Dashboard"),
		Loading: true,
	})
}

// ServePanels handles GET /dashboard/panels. The session check and the
// four reads run concurrently; nothing renders until all have settled.
func (h *Handler) ServePanels(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RedirectToLogin(w, r)
		return
	}

	guardCtx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Upstream(), h.Log, "dashboard session check")
	defer cancel()
	verdictCh := h.Guard.CheckAsync(guardCtx, u.Credentials)

	snap := h.Loader.Load(r.Context(), u.Credentials)
	verdict := <-verdictCh

	if !snap.Alive() {
		h.Log.Debug("dashboard request ended before data settled", zap.String("user", u.Name))
		return
	}

	if !verdict.Authenticated || snap.Unauthorized() {
		h.Log.Info("dashboard session rejected",
			zap.String("user", u.Name),
			zap.Bool("check_authenticated", verdict.Authenticated),
			zap.Bool("read_unauthorized", snap.Unauthorized()),
			zap.NamedError("check_error", verdict.Err))
		h.toLogin(w, r)
		return
	}

	h.touch(r, u)

	name := verdict.Identity.Username
	if name == "" {
		name = u.Name
	}

	data := dashboardData{
		BaseVM: viewdata.NewBaseVM(r, "Dashboard"),
		Panels: buildPanels(snap, name),
	}

	h.Log.Debug("dashboard served",
		zap.String("user", u.Name),
		zap.Int("failed_reads", len(snap.Failures())))

	if r.Header.Get("HX-Request") == "true" {
		renderSnippet(w, "dashboard_panels", data)
		return
	}
	render(w, r, "dashboard_page", data)
}

// toLogin drops the stale local session and sends the browser to /login.
func (h *Handler) toLogin(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("clear rejected session", zap.Error(err))
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// touch marks the activity session as used. Failures are logged only.
func (h *Handler) touch(r *http.Request, u *auth.SessionUser) {
	if h.Sessions == nil || u.ActivityID == "" {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "touch activity session")
	defer cancel()
	if _, err := h.Sessions.TouchHex(ctx, u.ActivityID, "/dashboard"); err != nil {
		h.Log.Warn("failed to touch activity session", zap.String("session_id", u.ActivityID), zap.Error(err))
	}
}
