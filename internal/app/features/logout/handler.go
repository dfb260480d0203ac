// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"github.com/dexit/dexdash/internal/app/store/sessions"
	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Revoker ends the user's session on the analytics backend.
type Revoker interface {
	Logout(ctx context.Context, creds analyticsapi.Credentials) error
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	API        Revoker
	Sessions   *sessions.Store // nil when no audit database
}

func NewHandler(api Revoker, sessionMgr *auth.SessionManager, sessStore *sessions.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		API:        api,
		Sessions:   sessStore,
	}
}

// ServeLogout handles GET /logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.revoke(r, u)
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	// HTMX handling: use HX-Redirect to force a client-side navigation.
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// revoke ends the backend session and closes the activity session. Neither
// failure stops the local sign-out.
func (h *Handler) revoke(r *http.Request, u *auth.SessionUser) {
	if h.API != nil && len(u.Credentials) > 0 {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Login(), h.Log, "backend logout")
		err := h.API.Logout(ctx, u.Credentials)
		cancel()
		if err != nil {
			h.Log.Warn("backend logout failed", zap.String("username", u.Name), zap.Error(err))
		}
	}

	if h.Sessions != nil && u.ActivityID != "" {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "close activity session")
		err := h.Sessions.CloseHex(ctx, u.ActivityID, sessions.EndLogout)
		cancel()
		if err != nil {
			h.Log.Warn("failed to close activity session",
				zap.String("username", u.Name),
				zap.String("session_id", u.ActivityID),
				zap.Error(err))
		}
	}
}
