// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	uierrors "github.com/dexit/dexdash/internal/app/features/errors"
	"github.com/dexit/dexdash/internal/app/store/logins"
	"github.com/dexit/dexdash/internal/app/store/sessions"
	"github.com/dexit/dexdash/internal/app/system/analyticsapi"
	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/ratelimit"
	"github.com/dexit/dexdash/internal/app/system/sessionguard"
	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
	"github.com/dexit/dexdash/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// GenericError is the only failure message a visitor ever sees.
const GenericError = "Invalid username or password"

// Authenticator exchanges a username and password for backend credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (analyticsapi.Credentials, error)
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	API        Authenticator
	Guard      *sessionguard.Guard
	Limiter    *ratelimit.LoginLimiter // nil disables throttling
	Logins     *loginstore.Store       // nil when no audit database
	Sessions   *sessions.Store         // nil when no audit database
	Role       string                  // role sent with the login, cached in the session
}

func NewHandler(
	api Authenticator,
	guard *sessionguard.Guard,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	limiter *ratelimit.LoginLimiter,
	loginStore *loginstore.Store,
	sessStore *sessions.Store,
	role string,
	logger *zap.Logger,
) *Handler {
	if role == "" {
		role = analyticsapi.DefaultLoginRole
	}
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		API:        api,
		Guard:      guard,
		Limiter:    limiter,
		Logins:     loginStore,
		Sessions:   sessStore,
		Role:       role,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	Username  string // what the user typed; the password is never echoed
	ReturnURL string
}

type loginForm struct {
	Username string `validate:"required,max=128"`
	Password string `validate:"required,max=256"`
}

var validate = validator.New()

// render and renderSnippet are swapped in tests.
var (
	render = func(w http.ResponseWriter, r *http.Request, name string, data any) {
		templates.Render(w, r, name, data)
	}
	renderSnippet = func(w http.ResponseWriter, name string, data any) {
		templates.RenderSnippet(w, name, data)
	}
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin renders the form. A visitor whose backend session is still
// valid goes straight to the dashboard; a local session the backend no
// longer accepts is dropped so the page renders signed out.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")

	if u, ok := auth.CurrentUser(r); ok {
		if h.backendAccepts(r, u) {
			http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/dashboard"), http.StatusSeeOther)
			return
		}
		r = h.dropStaleSession(w, r, u)
	}

	render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Login"),
		ReturnURL: ret,
	})
}

func (h *Handler) backendAccepts(r *http.Request, u *auth.SessionUser) bool {
	if h.Guard == nil {
		return false
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Login(), h.Log, "login session check")
	defer cancel()
	return h.Guard.Check(ctx, u.Credentials).Authenticated
}

// dropStaleSession expires the local cookie, closes the activity session and
// returns r without a user so the page chrome renders signed out.
func (h *Handler) dropStaleSession(w http.ResponseWriter, r *http.Request, u *auth.SessionUser) *http.Request {
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.ErrLog.Error(r, "clear stale session failed", err, zap.String("username", u.Name))
	}
	if h.Sessions != nil && u.ActivityID != "" {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "close stale activity session")
		err := h.Sessions.CloseHex(ctx, u.ActivityID, sessions.EndRejected)
		cancel()
		if err != nil {
			h.ErrLog.Warn(r, "failed to close stale activity session", err, zap.String("session_id", u.ActivityID))
		}
	}
	return auth.WithoutUser(r)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.Warn(r, "parse login form failed", err)
		h.renderFormWithError(w, r, "")
		return
	}

	form := loginForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}

	if err := validate.Struct(form); err != nil {
		h.Log.Debug("login form invalid", zap.Error(err))
		h.audit(r, form.Username, models.LoginReasonInvalid)
		h.renderFormWithError(w, r, form.Username)
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, form.Username); !ok {
			h.Log.Warn("login rate limited",
				zap.String("username", form.Username),
				zap.String("limit", reason),
				zap.String("ip", ratelimit.ClientIP(r)))
			h.audit(r, form.Username, models.LoginReasonRateLimited)
			h.renderFormWithError(w, r, form.Username)
			return
		}
	}

	/*── authenticate against the analytics backend ────────────────────────*/

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Login(), h.Log, "backend login")
	creds, err := h.API.Login(ctx, form.Username, form.Password)
	cancel()

	switch {
	case err == nil && len(creds) == 0:
		h.Log.Warn("backend accepted login without a session cookie", zap.String("username", form.Username))
		h.audit(r, form.Username, models.LoginReasonRejected)
		h.renderFormWithError(w, r, form.Username)
		return
	case analyticsapi.IsUnauthorized(err):
		h.Log.Info("login rejected", zap.String("username", form.Username))
		h.audit(r, form.Username, models.LoginReasonRejected)
		h.renderFormWithError(w, r, form.Username)
		return
	case err != nil:
		h.ErrLog.Upstream(r, "backend login failed", err, zap.String("username", form.Username))
		h.audit(r, form.Username, models.LoginReasonUnavailable)
		h.renderFormWithError(w, r, form.Username)
		return
	}

	h.createSessionAndRedirect(w, r, form.Username, creds)
}

// createSessionAndRedirect stores the backend credentials in the local
// session and sends the browser on to its destination.
func (h *Handler) createSessionAndRedirect(w http.ResponseWriter, r *http.Request, username string, creds analyticsapi.Credentials) {
	u := auth.SessionUser{
		Name:        username,
		Role:        h.Role,
		Credentials: creds,
	}

	// Create activity session for tracking
	if h.Sessions != nil {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "create activity session")
		activitySess, err := h.Sessions.Create(ctx, username, ratelimit.ClientIP(r), r.UserAgent(), sessions.CreatedByLogin)
		cancel()
		if err != nil {
			h.ErrLog.Warn(r, "failed to create activity session", err, zap.String("username", username))
		} else {
			u.ActivityID = activitySess.ID.Hex()
		}
	}

	if err := h.SessionMgr.SignIn(w, r, u); err != nil {
		h.ErrLog.Error(r, "save session failed", err, zap.String("username", username))
		h.audit(r, username, models.LoginReasonSessionSave)
		h.renderFormWithError(w, r, username)
		return
	}

	h.audit(r, username, models.LoginReasonOK)
	if h.Limiter != nil {
		h.Limiter.ResetUser(username)
	}

	dest := urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "/dashboard")
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// audit records the attempt when an audit database is configured. Failures
// are logged and never block the login.
func (h *Handler) audit(r *http.Request, username, reason string) {
	if h.Logins == nil {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.Log, "record login attempt")
	defer cancel()
	if err := h.Logins.CreateFrom(ctx, r, username, reason); err != nil {
		h.ErrLog.Warn(r, "failed to record login attempt", err, zap.String("username", username))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| helper: render the form with an error                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// renderFormWithError re-renders the form with the generic message and an
// enabled submit control. HTMX posts get only the form back. Any local
// session left over from an earlier sign-in is dropped first.
func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, username string) {
	if u, ok := auth.CurrentUser(r); ok {
		r = h.dropStaleSession(w, r, u)
	}

	ret := strings.TrimSpace(r.FormValue("return"))
	if ret == "" {
		ret = query.Get(r, "return")
	}

	data := loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Login"),
		Error:     GenericError,
		Username:  username,
		ReturnURL: ret,
	}
	if r.Header.Get("HX-Request") == "true" {
		renderSnippet(w, "login_form", data)
		return
	}
	render(w, r, "login", data)
}
