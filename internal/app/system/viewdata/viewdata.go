// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/dexit/dexdash/internal/app/system/auth"
)

// DefaultSiteName is the brand shown in the sidebar when none is configured.
const DefaultSiteName = "DEX IT"

// NavItem is one sidebar entry.
type NavItem struct {
	Label  string
	Href   string
	Active bool
}

// NavGroup is a titled block of sidebar entries.
type NavGroup struct {
	Title string
	Items []NavItem
}

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title"),
//	}
type BaseVM struct {
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	UserName   string
	Role       string
	Initials   string

	// Page context
	Title       string
	CurrentPath string
	Nav         []NavGroup
}

var (
	mu       sync.RWMutex
	siteName = DefaultSiteName
)

// SetSiteName sets the brand for every page. Call once at startup.
func SetSiteName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSiteName
	}
	mu.Lock()
	siteName = name
	mu.Unlock()
}

// SiteName returns the configured brand.
func SiteName() string {
	mu.RLock()
	defer mu.RUnlock()
	return siteName
}

// NewBaseVM creates a fully populated BaseVM for a page.
func NewBaseVM(r *http.Request, title string) BaseVM {
	path := httpnav.CurrentPath(r)
	vm := BaseVM{
		SiteName:    SiteName(),
		Title:       title,
		CurrentPath: path,
	}

	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.UserName = u.Name
		vm.Role = u.Role
		vm.Initials = Initials(u.Name)
		vm.Nav = sidebar(path)
	}
	return vm
}

func sidebar(current string) []NavGroup {
	return []NavGroup{
		{
			Title: "Dashboard",
			Items: []NavItem{
				{Label: "Dashboard", Href: "/dashboard", Active: strings.HasPrefix(current, "/dashboard")},
			},
		},
	}
}

// Initials returns up to two upper-case initials for the avatar badge.
func Initials(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '.' || r == '_' || r == '-' || r == '@'
	})
	var out []rune
	for _, f := range fields {
		rs := []rune(f)
		out = append(out, rs[0])
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return strings.ToUpper(string(out))
}
