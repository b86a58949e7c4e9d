package catalog

import (
	"testing"

	"github.com/grovetools/appshelf/pkg/models"
	"github.com/stretchr/testify/assert"
)

var testCreds = Credentials{Username: "DRC27", Password: "DRC27"}

func TestDeriveAdminMode(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		loggedIn bool
		wantPath string
	}{
		{name: "matching credentials", path: "/admin/DRC27/DRC27", loggedIn: true, wantPath: "/admin/DRC27/DRC27"},
		{name: "wrong credentials", path: "/admin/x/y", wantPath: "/"},
		{name: "wrong password only", path: "/admin/DRC27/nope", wantPath: "/"},
		{name: "case sensitive", path: "/admin/drc27/drc27", wantPath: "/"},
		{name: "root", path: "/", wantPath: "/"},
		{name: "empty", path: "", wantPath: ""},
		{name: "admin only", path: "/admin", wantPath: "/admin"},
		{name: "missing password", path: "/admin/DRC27", wantPath: "/admin/DRC27"},
		{name: "empty password segment", path: "/admin/DRC27/", wantPath: "/admin/DRC27/"},
		{name: "empty user segment", path: "/admin//DRC27", wantPath: "/admin//DRC27"},
		{name: "trailing slash", path: "/admin/DRC27/DRC27/", wantPath: "/admin/DRC27/DRC27/"},
		{name: "extra segment", path: "/admin/DRC27/DRC27/x", wantPath: "/admin/DRC27/DRC27/x"},
		{name: "no leading slash", path: "admin/DRC27/DRC27/", wantPath: "admin/DRC27/DRC27/"},
		{name: "other prefix", path: "/apps/DRC27/DRC27", wantPath: "/apps/DRC27/DRC27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, path := DeriveAdminMode(tt.path, testCreds)
			assert.Equal(t, tt.loggedIn, session.LoggedIn)
			assert.Equal(t, tt.loggedIn, session.PanelVisible)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestAdminPathRoundTrip(t *testing.T) {
	session, _ := DeriveAdminMode(AdminPath(testCreds), testCreds)
	assert.True(t, session.LoggedIn)
}

func TestAccessGate(t *testing.T) {
	t.Run("empty start path becomes root", func(t *testing.T) {
		g := NewAccessGate("", testCreds)
		assert.Equal(t, RootPath, g.Path())
		assert.False(t, g.LoggedIn())
	})

	t.Run("rejected credentials reset the path", func(t *testing.T) {
		g := NewAccessGate("/admin/x/y", testCreds)
		assert.Equal(t, RootPath, g.Path())
		assert.False(t, g.LoggedIn())
	})

	t.Run("navigation keeps admin mode", func(t *testing.T) {
		g := NewAccessGate("/admin/DRC27/DRC27", testCreds)
		assert.True(t, g.LoggedIn())

		g.Navigate("/apps")
		assert.Equal(t, "/apps", g.Path())
		assert.True(t, g.LoggedIn())
	})

	t.Run("navigation does not grant admin mode", func(t *testing.T) {
		g := NewAccessGate("/", testCreds)
		g.Navigate("/admin/DRC27/DRC27")
		assert.False(t, g.LoggedIn())
	})

	t.Run("logout", func(t *testing.T) {
		g := NewAccessGate("/admin/DRC27/DRC27", testCreds)
		assert.True(t, g.Logout())
		assert.Equal(t, models.AdminSession{}, g.Session())
		assert.Equal(t, RootPath, g.Path())
		assert.False(t, g.Logout())
	})
}

func TestFilter(t *testing.T) {
	apps := []models.CatalogEntry{
		{ID: "1", Name: "Zed Editor", Category: "Tools", Description: "Fast text editor"},
		{ID: "2", Name: "Ann Player", Category: "Media"},
		{ID: "3", Name: "Backup", Category: "tools", Description: "Keeps your files safe"},
	}

	ids := func(entries []models.CatalogEntry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		query    string
		category string
		want     []string
	}{
		{name: "everything in order", query: "", category: AllCategories, want: []string{"1", "2", "3"}},
		{name: "name match ignores case", query: "zed", category: AllCategories, want: []string{"1"}},
		{name: "description match", query: "FILES", category: AllCategories, want: []string{"3"}},
		{name: "absent description never matches text", query: "editor", category: AllCategories, want: []string{"1"}},
		{name: "category ignores case", query: "", category: "TOOLS", want: []string{"1", "3"}},
		{name: "both predicates must hold", query: "player", category: "tools", want: []string{}},
		{name: "query and category", query: "e", category: "media", want: []string{"2"}},
		{name: "unknown category", query: "", category: "games", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(apps, tt.query, tt.category)))
		})
	}
}

func TestFilterDoesNotResort(t *testing.T) {
	apps := []models.CatalogEntry{{Name: "Zed"}, {Name: "Ann"}}
	assert.Equal(t, apps, Filter(apps, "", AllCategories))
}

func TestCategories(t *testing.T) {
	apps := []models.CatalogEntry{
		{Category: "Tools"},
		{Category: "Media"},
		{Category: "Tools"},
		{Category: "Games"},
	}
	assert.Equal(t, []string{AllCategories, "Tools", "Media", "Games"}, Categories(apps))
	assert.Equal(t, []string{AllCategories}, Categories(nil))
}
