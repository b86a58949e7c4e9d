// Package browse is the interactive catalog browser.
package browse

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/appshelf/pkg/catalog"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/grovetools/appshelf/tui/keymap"
	"github.com/grovetools/appshelf/tui/theme"
)

// Session is the part of catalog.Session the browser drives.
type Session interface {
	View() catalog.View
	Changed() <-chan struct{}
	AddApp(ctx context.Context, draft *models.AppDraft) models.Status
	RequestDelete(id string) error
	ConfirmDelete(ctx context.Context) models.Status
	CancelDelete()
	SendMessage(ctx context.Context, form *models.ContactForm) models.Status
	DeleteMessage(ctx context.Context, id string) models.Status
	Logout() bool
}

type pane int

const (
	paneApps pane = iota
	paneMessages
)

// Model represents the state of the catalog browser.
type Model struct {
	ctx     context.Context
	timeout time.Duration
	session Session
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	search  textinput.Model
	theme   *theme.Theme

	view       catalog.View
	apps       []models.CatalogEntry
	categories []string
	category   string
	pane       pane
	cursor     int
	msgCursor  int
	form       *form
	status     models.Status
	width      int
	height     int
}

// changedMsg reports that the session state moved on.
type changedMsg struct{}

// statusMsg carries the result of a mutation started from kind.
type statusMsg struct {
	kind   formKind
	status models.Status
}

// Options configures the browser.
type Options struct {
	// Timeout bounds each mutation.
	Timeout time.Duration
	// Keys rebinds entries of DefaultKeyMap.
	Keys keymap.Overrides
}

// New creates a browser over session.
func New(ctx context.Context, session Session, opts Options) *Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search name or description"
	search.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:      ctx,
		timeout:  opts.Timeout,
		session:  session,
		keys:     DefaultKeyMap,
		help:     help.New(),
		spinner:  sp,
		search:   search,
		theme:    theme.DefaultTheme,
		category: catalog.AllCategories,
	}
	keymap.ApplyOverrides(&m.keys, opts.Keys)
	m.refresh()
	return m
}

// Init starts listening for session changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.wait(), m.spinner.Tick)
}

// wait blocks on the session's change channel in the background.
func (m *Model) wait() tea.Cmd {
	ch := m.session.Changed()
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// refresh reloads the view and re-projects the visible apps.
func (m *Model) refresh() {
	m.view = m.session.View()
	m.keys.setAdmin(m.view.Admin.LoggedIn)
	if !m.view.Admin.LoggedIn {
		m.pane = paneApps
	}

	m.categories = catalog.Categories(m.view.Apps)
	if indexOf(m.categories, m.category) < 0 {
		m.category = catalog.AllCategories
	}
	m.apps = catalog.Filter(m.view.Apps, m.search.Value(), m.category)
	m.cursor = clamp(m.cursor, len(m.apps))
	m.msgCursor = clamp(m.msgCursor, len(m.view.Messages))
}

// cycleCategory selects the next category, wrapping back to all.
func (m *Model) cycleCategory() {
	i := indexOf(m.categories, m.category)
	m.category = m.categories[(i+1)%len(m.categories)]
	m.cursor = 0
	m.refresh()
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func (m *Model) mutate(kind formKind, fn func(ctx context.Context) models.Status) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		return statusMsg{kind: kind, status: fn(ctx)}
	}
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
