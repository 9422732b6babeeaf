package thread

import "testing"

func TestPresentationRole(t *testing.T) {
	tests := []struct {
		role Role
		want Role
	}{
		{RoleSystem, RoleSystem},
		{RoleSummary, RoleSystem},
		{RoleUser, RoleUser},
		{RoleMentor, RoleMentor},
	}
	for _, tt := range tests {
		if got := tt.role.PresentationRole(); got != tt.want {
			t.Errorf("PresentationRole(%s) = %s, want %s", tt.role, got, tt.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleSystem, RoleSummary, RoleUser, RoleMentor} {
		if !role.Valid() {
			t.Errorf("Valid(%s) = false", role)
		}
	}
	if Role("ADMIN").Valid() {
		t.Error("Valid(ADMIN) = true, want false")
	}
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English"},
		{"", "English"},
		{"PL", "Polish"},
		{"uk", "Ukrainian"},
		{"tlh", "tlh"},
	}
	for _, tt := range tests {
		if got := LanguageName(tt.code); got != tt.want {
			t.Errorf("LanguageName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
