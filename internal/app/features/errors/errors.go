// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
)

// pageData is the basic view model for error pages.
type pageData struct {
	viewdata.BaseVM
	Status  int
	Message string
	BackURL string
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

// Handler is the errors feature handler.
// No dependencies; it just renders templates.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound renders the friendly 404 page. Mounted as the router's NotFound.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	back := "/login"
	if vm := viewdata.NewBaseVM(r, ""); vm.IsLoggedIn {
		back = "/dashboard"
	}
	RenderPage(w, r, http.StatusNotFound, "Page not found", "We couldn't find that page.", back)
}

// RenderPage writes status and renders the error page. HTMX requests get
// only the inline panel so the message lands in the swap target.
func RenderPage(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	if backURL == "" {
		backURL = "/"
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, title),
		Status:  status,
		Message: msg,
		BackURL: backURL,
	}

	w.WriteHeader(status)
	if r.Header.Get("HX-Request") == "true" {
		renderSnippet(w, "error_panel", data)
		return
	}
	render(w, r, "error_page", data)
}
