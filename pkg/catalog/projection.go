package catalog

import (
	"strings"

	"github.com/grovetools/appshelf/pkg/models"
)

// AllCategories is the category selector value that matches every entry.
const AllCategories = "all"

// Filter returns the entries of apps that match both the search query and
// the category, in their original order.
//
// The query matches case-insensitively as a substring of the name or the
// description. The category matches when it is AllCategories or equals the
// entry's category ignoring case.
func Filter(apps []models.CatalogEntry, query, category string) []models.CatalogEntry {
	q := strings.ToLower(query)
	wantCategory := strings.ToLower(category)

	out := make([]models.CatalogEntry, 0, len(apps))
	for _, app := range apps {
		matchesSearch := strings.Contains(strings.ToLower(app.Name), q) ||
			(app.Description != "" && strings.Contains(strings.ToLower(app.Description), q))
		matchesCategory := category == AllCategories || strings.ToLower(app.Category) == wantCategory
		if matchesSearch && matchesCategory {
			out = append(out, app)
		}
	}
	return out
}

// Categories lists the distinct categories of apps in first-seen order,
// prefixed with AllCategories.
func Categories(apps []models.CatalogEntry) []string {
	seen := make(map[string]struct{}, len(apps))
	out := []string{AllCategories}
	for _, app := range apps {
		if _, ok := seen[app.Category]; ok {
			continue
		}
		seen[app.Category] = struct{}{}
		out = append(out, app.Category)
	}
	return out
}
