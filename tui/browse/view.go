package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/appshelf/pkg/models"
)

// View renders the browser.
func (m *Model) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	if err := m.view.ProviderErr; err != nil {
		b.WriteString(t.Error.Render("Identity unavailable: " + err.Error()))
		b.WriteString("\n")
	}
	if err := m.view.SignInErr; err != nil && !m.view.Identity.Ready {
		b.WriteString(t.Warning.Render("Sign-in failed: " + err.Error()))
		b.WriteString("\n")
	}
	if err := m.view.CatalogErr; err != nil {
		b.WriteString(t.Warning.Render("Catalog sync failed: " + err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.filterView())
	b.WriteString("\n\n")

	switch {
	case m.form != nil:
		b.WriteString(m.formView())
	case m.pane == paneMessages:
		b.WriteString(m.messagesView())
	default:
		b.WriteString(m.appsView())
	}
	b.WriteString("\n")

	if pending := m.view.PendingDelete; pending != nil {
		b.WriteString("\n")
		b.WriteString(t.Warning.Render(fmt.Sprintf("Delete %q? This cannot be undone. [y/N]", pending.Name)))
		b.WriteString("\n")
	}

	if m.status.Kind != models.StatusNone {
		b.WriteString("\n")
		b.WriteString(t.RenderStatus(string(m.status.Kind), m.status.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) headerView() string {
	t := m.theme
	parts := []string{t.Title.Render("APPSHELF")}
	if m.view.Admin.LoggedIn {
		parts = append(parts, t.Accent.Render("[admin]"))
	}
	if m.view.Identity.Ready {
		parts = append(parts, t.Muted.Render("user "+m.view.Identity.UserID))
	}
	return strings.Join(parts, " ")
}

func (m *Model) filterView() string {
	t := m.theme
	search := m.search.View()
	if !m.search.Focused() && m.search.Value() == "" {
		search = t.Muted.Render("/ to search")
	}

	cats := make([]string, 0, len(m.categories))
	for _, c := range m.categories {
		if c == m.category {
			cats = append(cats, t.Highlight.Render("["+c+"]"))
		} else {
			cats = append(cats, t.Muted.Render(c))
		}
	}
	return search + "   " + strings.Join(cats, " ")
}

func (m *Model) appsView() string {
	t := m.theme
	if m.view.Loading {
		return m.spinner.View() + " " + t.Muted.Render("Loading catalog...")
	}
	if len(m.apps) == 0 {
		return t.Muted.Render("No applications match.")
	}

	lines := make([]string, 0, len(m.apps))
	for i, app := range m.apps {
		lines = append(lines, m.appLine(app, i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) appLine(app models.CatalogEntry, selected bool) string {
	t := m.theme
	name := app.Name
	if app.Featured {
		name = "★ " + name
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(28).Render(t.Bold.Render(name)),
		lipgloss.NewStyle().Width(14).Render(t.Info.Render(app.Category)),
		lipgloss.NewStyle().Width(10).Render(t.Muted.Render(app.Version)),
		app.Description,
	)
	if selected {
		return t.Selected.Render("> " + line)
	}
	return "  " + line
}

func (m *Model) messagesView() string {
	t := m.theme
	if !m.view.MessagesLoaded {
		return m.spinner.View() + " " + t.Muted.Render("Loading messages...")
	}
	if err := m.view.MessagesErr; err != nil {
		return t.Error.Render("Messages unavailable: " + err.Error())
	}
	if len(m.view.Messages) == 0 {
		return t.Muted.Render("No messages.")
	}

	var b strings.Builder
	for i, msg := range m.view.Messages {
		received := "-"
		if !msg.Timestamp.IsZero() {
			received = msg.Timestamp.Local().Format("2006-01-02 15:04")
		}
		head := fmt.Sprintf("%s  %s <%s>", received, msg.Name, msg.Email)
		if i == m.msgCursor {
			b.WriteString(t.Selected.Render("> " + head))
		} else {
			b.WriteString("  " + t.Bold.Render(head))
		}
		b.WriteString("\n    " + msg.Message + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) formView() string {
	t := m.theme
	rows := []string{t.Header.Render(m.form.kind.title())}
	for i, in := range m.form.inputs {
		label := lipgloss.NewStyle().Width(16).Render(m.form.labels[i])
		if i == m.form.focus {
			label = t.Highlight.Render(label)
		}
		rows = append(rows, label+" "+in.View())
	}
	rows = append(rows, "", t.Muted.Render("enter submit · tab next field · esc cancel"))
	return t.Box.Render(strings.Join(rows, "\n"))
}
