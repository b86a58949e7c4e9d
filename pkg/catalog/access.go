package catalog

import (
	"strings"
	"sync"

	"github.com/grovetools/appshelf/pkg/models"
)

// RootPath is where a rejected or logged-out admin path is reset to.
const RootPath = "/"

// Credentials is the fixed admin credential pair.
type Credentials struct {
	Username string
	Password string
}

// AdminPath returns the navigation path that unlocks admin mode for creds.
func AdminPath(creds Credentials) string {
	return "/admin/" + creds.Username + "/" + creds.Password
}

// DeriveAdminMode evaluates a navigation path against creds.
//
// Only paths shaped exactly /admin/<user>/<pass> with both segments non-empty
// are considered. A match enables admin mode; a mismatch disables it and
// resets the path to "/" so the rejected credentials do not stay visible.
// Every other path disables admin mode and is returned unchanged.
func DeriveAdminMode(path string, creds Credentials) (models.AdminSession, string) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "" || parts[1] != "admin" || parts[2] == "" || parts[3] == "" {
		return models.AdminSession{}, path
	}
	if parts[2] == creds.Username && parts[3] == creds.Password {
		return models.AdminSession{LoggedIn: true, PanelVisible: true}, path
	}
	return models.AdminSession{}, RootPath
}

// AccessGate holds the admin session for one process. Admin mode is derived
// once from the starting path; navigating afterwards does not re-evaluate it
// and Logout is the only way out.
type AccessGate struct {
	mu      sync.RWMutex
	session models.AdminSession
	path    string
}

// NewAccessGate derives the admin session from the starting path.
func NewAccessGate(path string, creds Credentials) *AccessGate {
	if path == "" {
		path = RootPath
	}
	session, normalized := DeriveAdminMode(path, creds)
	return &AccessGate{session: session, path: normalized}
}

// Session returns the current admin session.
func (g *AccessGate) Session() models.AdminSession {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// LoggedIn reports whether admin mode is active.
func (g *AccessGate) LoggedIn() bool {
	return g.Session().LoggedIn
}

// Path returns the current navigation path.
func (g *AccessGate) Path() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.path
}

// Navigate records a new path without touching the admin session.
func (g *AccessGate) Navigate(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.path = path
}

// Logout leaves admin mode and resets the path. It reports whether admin
// mode was active.
func (g *AccessGate) Logout() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := g.session.LoggedIn
	g.session = models.AdminSession{}
	g.path = RootPath
	return was
}
