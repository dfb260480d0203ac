// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"encoding/json"
	"net/http"

	"github.com/dexit/dexdash/internal/app/store/sessions"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/ratelimit"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler handles heartbeat requests for activity tracking.
type Handler struct {
	Sessions   *sessions.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler creates a new heartbeat handler.
func NewHandler(sessStore *sessions.Store, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions:   sessStore,
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

// heartbeatRequest is the JSON body for the heartbeat endpoint.
type heartbeatRequest struct {
	Page string `json:"page"`
}

// ServeHeartbeat handles POST /api/heartbeat.
// Updates LastActiveAt on the user's activity session. If the session was
// closed for inactivity, a new one is opened and stored in the cookie.
// Always answers 204; the browser has nothing to do with failures.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || h.Sessions == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // page is optional
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "heartbeat")
	defer cancel()

	if u.ActivityID != "" {
		updated, err := h.Sessions.TouchHex(ctx, u.ActivityID, req.Page)
		if err != nil {
			h.Log.Warn("failed to update session last_active_at",
				zap.Error(err),
				zap.String("session_id", u.ActivityID))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if updated {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	// No open activity session: start a new one.
	newSess, err := h.Sessions.Create(ctx, u.Name, ratelimit.ClientIP(r), r.UserAgent(), sessions.CreatedByHeartbeat)
	if err != nil {
		h.Log.Warn("failed to create new activity session after timeout",
			zap.Error(err),
			zap.String("username", u.Name))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	next := *u
	next.ActivityID = newSess.ID.Hex()
	if err := h.SessionMgr.SignIn(w, r, next); err != nil {
		h.Log.Warn("failed to save session with new activity_session_id", zap.Error(err))
	}

	h.Log.Info("created new activity session after inactivity timeout",
		zap.String("username", u.Name),
		zap.String("new_session_id", newSess.ID.Hex()))

	w.WriteHeader(http.StatusNoContent)
}
