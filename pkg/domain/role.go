package domain

import (
	"encoding/json"
	"strings"
)

// Role is a staff role. The set is closed: strings outside it parse to a
// role with no capabilities.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RolePharmacist    Role = "pharmacist"
	RoleLabTechnician Role = "Lab Technician"
	RoleReceptionist  Role = "receptionist"
)

// Capability is a view or action gated by role. Views without one are open
// to every signed-in user.
type Capability string

const (
	CapViewPatients  Capability = "patients.view"
	CapManageTests   Capability = "tests.manage"
	CapRecordResults Capability = "tests.results.record"
)

type roleInfo struct {
	Title        string
	Greeting     string
	Capabilities []Capability
}

// roles is the complete role table. Adding a role means adding it here.
var roles = map[Role]roleInfo{
	RoleAdmin: {
		Title:    "Administrator",
		Greeting: "Here's the state of the clinic today",
		Capabilities: []Capability{
			CapViewPatients, CapManageTests, CapRecordResults,
		},
	},
	RoleDoctor: {
		Title:        "Physician",
		Greeting:     "Here's what's happening with your patients today",
		Capabilities: []Capability{CapViewPatients},
	},
	RoleNurse: {
		Title:        "Nurse",
		Greeting:     "Here's who needs attention today",
		Capabilities: []Capability{CapViewPatients},
	},
	RolePharmacist: {
		Title:        "Pharmacist",
		Greeting:     "Here are today's patients",
		Capabilities: []Capability{CapViewPatients},
	},
	RoleLabTechnician: {
		Title:        "Lab Technician",
		Greeting:     "Here are the tests waiting on the lab",
		Capabilities: []Capability{CapViewPatients, CapManageTests, CapRecordResults},
	},
	RoleReceptionist: {
		Title:        "Reception",
		Greeting:     "Here's today's front desk",
		Capabilities: []Capability{CapViewPatients},
	},
}

// ParseRole maps a backend role string onto the closed set. Matching ignores
// case and surrounding space, and treats "_" and "-" as spaces, so
// "lab_technician" and "Lab Technician" are the same role. Unknown strings are
// returned unchanged and carry no capabilities.
func ParseRole(s string) Role {
	norm := normalizeRole(s)
	for r := range roles {
		if normalizeRole(string(r)) == norm {
			return r
		}
	}
	return Role(strings.TrimSpace(s))
}

func normalizeRole(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Known reports whether r is one of the defined roles.
func (r Role) Known() bool {
	_, ok := roles[r]
	return ok
}

// Can reports whether r grants c.
func (r Role) Can(c Capability) bool {
	info, ok := roles[r]
	if !ok {
		return false
	}
	for _, have := range info.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Title is the human label for the role.
func (r Role) Title() string {
	if info, ok := roles[r]; ok {
		return info.Title
	}
	if r == "" {
		return "Staff"
	}
	return string(r)
}

// Greeting is the dashboard subtitle shown to the role.
func (r Role) Greeting() string {
	if info, ok := roles[r]; ok {
		return info.Greeting
	}
	return "Welcome to the clinic dashboard"
}

// UnmarshalJSON canonicalizes the wire string through ParseRole.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}
