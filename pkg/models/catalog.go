// Package models holds the catalog domain types shared by the session,
// the CLI and the browse TUI.
package models

import (
	"time"
)

// CatalogEntry is a downloadable application listed in the catalog.
// ID is assigned by the store and never changes.
type CatalogEntry struct {
	ID          string `json:"id" mapstructure:"-"`
	Name        string `json:"name" mapstructure:"name"`
	Category    string `json:"category" mapstructure:"category"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Version     string `json:"version,omitempty" mapstructure:"version"`
	DownloadURL string `json:"downloadUrl,omitempty" mapstructure:"downloadUrl"`
	IconURL     string `json:"iconUrl,omitempty" mapstructure:"iconUrl"`
	Featured    bool   `json:"featured" mapstructure:"featured"`
}

// ContactMessage is a visitor message stored under the sender's private namespace.
type ContactMessage struct {
	ID        string    `json:"id" mapstructure:"-"`
	Name      string    `json:"name" mapstructure:"name"`
	Email     string    `json:"email" mapstructure:"email"`
	Message   string    `json:"message" mapstructure:"message"`
	Timestamp time.Time `json:"timestamp" mapstructure:"timestamp"`
}

// AppDraft is the admin's add-entry form.
type AppDraft struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	Featured    bool   `json:"featured"`
}

// Reset clears every field of the draft.
func (d *AppDraft) Reset() {
	*d = AppDraft{}
}

// Missing returns the names of the empty required fields.
func (d AppDraft) Missing() []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Category == "" {
		missing = append(missing, "category")
	}
	return missing
}

// Fields returns the store payload for the draft.
// Optional fields are omitted when empty.
func (d AppDraft) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"name":     d.Name,
		"category": d.Category,
		"featured": d.Featured,
	}
	optional := map[string]string{
		"description": d.Description,
		"version":     d.Version,
		"downloadUrl": d.DownloadURL,
		"iconUrl":     d.IconURL,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// ContactForm is the visitor's contact form.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Reset clears every field of the form.
func (f *ContactForm) Reset() {
	*f = ContactForm{}
}

// Missing returns the names of the empty required fields.
func (f ContactForm) Missing() []string {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if f.Email == "" {
		missing = append(missing, "email")
	}
	if f.Message == "" {
		missing = append(missing, "message")
	}
	return missing
}
