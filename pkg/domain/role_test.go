package domain

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Role
	}{
		{"exact doctor", "doctor", RoleDoctor},
		{"capitalized doctor", "Doctor", RoleDoctor},
		{"lab technician", "Lab Technician", RoleLabTechnician},
		{"lab technician snake", "lab_technician", RoleLabTechnician},
		{"padded admin", "  admin ", RoleAdmin},
		{"unknown", "Senior Physician", Role("Senior Physician")},
		{"empty", "", Role("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRole(tt.in); got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleCan(t *testing.T) {
	tests := []struct {
		name string
		role Role
		cap  Capability
		want bool
	}{
		{"admin manages tests", RoleAdmin, CapManageTests, true},
		{"lab tech manages tests", RoleLabTechnician, CapManageTests, true},
		{"doctor cannot manage tests", RoleDoctor, CapManageTests, false},
		{"doctor cannot record results", RoleDoctor, CapRecordResults, false},
		{"lab tech records results", RoleLabTechnician, CapRecordResults, true},
		{"pharmacist views patients", RolePharmacist, CapViewPatients, true},
		{"unknown role has nothing", Role("superuser"), CapViewPatients, false},
		{"empty role has nothing", Role(""), CapViewPatients, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Can(tt.cap); got != tt.want {
				t.Errorf("%q.Can(%q) = %v, want %v", tt.role, tt.cap, got, tt.want)
			}
		})
	}
}

func TestRoleUnmarshalCanonicalizes(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":"u-1","role":"lab technician"}`), &u); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if u.Role != RoleLabTechnician {
		t.Errorf("Role = %q, want %q", u.Role, RoleLabTechnician)
	}
	if !u.Role.Known() {
		t.Error("expected canonicalized role to be known")
	}
}

func TestEveryRoleCanViewPatients(t *testing.T) {
	for r := range roles {
		if !r.Can(CapViewPatients) {
			t.Errorf("role %q cannot view patients", r)
		}
	}
}
