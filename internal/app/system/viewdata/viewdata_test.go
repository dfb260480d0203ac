package viewdata_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
)

func TestNewBaseVM_Anonymous(t *testing.T) {
	req := httptest.NewRequest("GET", "/login", nil)

	vm := viewdata.NewBaseVM(req, "Login")

	if vm.IsLoggedIn {
		t.Error("anonymous request should not be logged in")
	}
	if vm.Title != "Login" {
		t.Errorf("Title: got %q", vm.Title)
	}
	if vm.SiteName == "" {
		t.Error("SiteName should default")
	}
	if len(vm.Nav) != 0 {
		t.Error("anonymous pages get no sidebar")
	}
}

func TestNewBaseVM_SignedIn(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{Name: "asha menon", Role: "USER"})

	vm := viewdata.NewBaseVM(req, "Dashboard")

	if !vm.IsLoggedIn || vm.UserName != "asha menon" || vm.Initials != "AM" {
		t.Errorf("user fields: %+v", vm)
	}
	if len(vm.Nav) != 1 || !vm.Nav[0].Items[0].Active {
		t.Errorf("expected active Dashboard entry, got %+v", vm.Nav)
	}
}

func TestSetSiteName(t *testing.T) {
	t.Cleanup(func() { viewdata.SetSiteName("") })

	viewdata.SetSiteName("Admissions")
	if got := viewdata.SiteName(); got != "Admissions" {
		t.Errorf("SiteName: got %q", got)
	}
	viewdata.SetSiteName("   ")
	if got := viewdata.SiteName(); got != viewdata.DefaultSiteName {
		t.Errorf("blank name should reset to default, got %q", got)
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"asha":            "A",
		"asha menon":      "AM",
		"a.b.c":           "AB",
		"user@example.io": "UE",
		"":                "?",
	}
	for in, want := range tests {
		if got := viewdata.Initials(in); got != want {
			t.Errorf("Initials(%q): got %q, want %q", in, got, want)
		}
	}
}
