// Package route names the dashboard's views and decides which one may render.
package route

import (
	"strings"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// Path identifies a view.
type Path string

const (
	Login     Path = "/"
	Dashboard Path = "/dashboard"
	Patients  Path = "/patients"
	Folders   Path = "/folders"
	Folder    Path = "/folders/:id"
	Responses Path = "/responses"
	Tests     Path = "/tests"
)

// FolderPath is the concrete path of one folder's detail view.
func FolderPath(id string) Path {
	return Path("/folders/" + id)
}

// FolderID extracts the folder id from a concrete folder path.
func FolderID(p Path) (string, bool) {
	rest, ok := strings.CutPrefix(string(p), "/folders/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// Pattern maps a concrete path onto its route pattern.
func Pattern(p Path) Path {
	if _, ok := FolderID(p); ok {
		return Folder
	}
	return p
}

// views is every route. All but Login are protected.
var views = map[Path]bool{
	Login: true, Dashboard: true, Patients: true, Folders: true,
	Folder: true, Responses: true, Tests: true,
}

// capabilities lists what a protected route requires beyond a session.
// Routes missing here are open to any signed-in user. Dashboard must stay
// open: it is where denied navigations land.
var capabilities = map[Path]domain.Capability{
	Patients: domain.CapViewPatients,
	Tests:    domain.CapManageTests,
}

// Known reports whether p names a view.
func Known(p Path) bool {
	return views[Pattern(p)]
}

// Protected reports whether p requires an authenticated session.
func Protected(p Path) bool {
	return Pattern(p) != Login
}

// Capability is what the user's role must grant to open p.
func Capability(p Path) (domain.Capability, bool) {
	c, ok := capabilities[Pattern(p)]
	return c, ok
}

// Landing is where a role goes right after login.
func Landing(r domain.Role) Path {
	if r == domain.RoleLabTechnician {
		return Tests
	}
	return Dashboard
}
