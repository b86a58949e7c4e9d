package browse

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the keybindings for the catalog browser.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Search   key.Binding
	Category key.Binding
	Pane     key.Binding
	Add      key.Binding
	Delete   key.Binding
	Contact  key.Binding
	Logout   key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Submit   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap is the default set of keybindings.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Category: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "category"),
	),
	Pane: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "apps/messages"),
	),
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add app"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Contact: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "contact"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "logout"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "n"),
		key.WithHelp("esc/n", "cancel"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Category, k.Pane, k.Add, k.Delete, k.Contact, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Search, k.Category},
		{k.Pane, k.Add, k.Delete, k.Logout},
		{k.Contact, k.Help, k.Quit},
	}
}

// setAdmin enables the admin-only bindings.
func (k *KeyMap) setAdmin(admin bool) {
	k.Pane.SetEnabled(admin)
	k.Add.SetEnabled(admin)
	k.Delete.SetEnabled(admin)
	k.Logout.SetEnabled(admin)
}
