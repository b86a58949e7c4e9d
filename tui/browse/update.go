package browse

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/appshelf/pkg/models"
)

// Update handles messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.wait()

	case statusMsg:
		m.status = msg.status
		if msg.kind != formNone && m.form != nil && m.form.kind == msg.kind && msg.status.OK() {
			m.form = nil
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case m.form != nil:
			return m, m.updateForm(msg)
		case m.view.PendingDelete != nil:
			return m, m.updateConfirm(msg)
		case m.search.Focused():
			return m, m.updateSearch(msg)
		}
		return m, m.updateBrowse(msg)
	}

	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	if m.help.ShowAll {
		m.help.ShowAll = false
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = true

	case key.Matches(msg, m.keys.Search):
		m.pane = paneApps
		return m.search.Focus()

	case key.Matches(msg, m.keys.Category):
		m.cycleCategory()

	case key.Matches(msg, m.keys.Pane):
		if m.pane == paneApps {
			m.pane = paneMessages
		} else {
			m.pane = paneApps
		}

	case key.Matches(msg, m.keys.Up):
		if m.pane == paneMessages {
			m.msgCursor = clamp(m.msgCursor-1, len(m.view.Messages))
		} else {
			m.cursor = clamp(m.cursor-1, len(m.apps))
		}

	case key.Matches(msg, m.keys.Down):
		if m.pane == paneMessages {
			m.msgCursor = clamp(m.msgCursor+1, len(m.view.Messages))
		} else {
			m.cursor = clamp(m.cursor+1, len(m.apps))
		}

	case key.Matches(msg, m.keys.Add):
		m.form = newAddForm()
		return textinput.Blink

	case key.Matches(msg, m.keys.Contact):
		m.form = newContactForm()
		return textinput.Blink

	case key.Matches(msg, m.keys.Delete):
		return m.deleteSelected()

	case key.Matches(msg, m.keys.Logout):
		if m.session.Logout() {
			m.status = models.Success("Logged out of admin mode.")
		}
		m.refresh()
	}
	return nil
}

// deleteSelected stages the selected app, or deletes the selected message.
// Messages have no confirmation step.
func (m *Model) deleteSelected() tea.Cmd {
	if m.pane == paneMessages {
		if len(m.view.Messages) == 0 {
			return nil
		}
		id := m.view.Messages[m.msgCursor].ID
		return m.mutate(formNone, func(ctx context.Context) models.Status {
			return m.session.DeleteMessage(ctx, id)
		})
	}
	if len(m.apps) == 0 {
		return nil
	}
	if err := m.session.RequestDelete(m.apps[m.cursor].ID); err != nil {
		m.status = models.Failure(err.Error(), err)
	}
	m.refresh()
	return nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		return m.mutate(formNone, m.session.ConfirmDelete)
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.session.CancelDelete()
		m.refresh()
	}
	return nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Reset()
		m.search.Blur()
		m.refresh()
		return nil
	case tea.KeyEnter:
		m.search.Blur()
		return nil
	case tea.KeyCtrlC:
		return tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	m.refresh()
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyEsc:
		m.form = nil
		return nil
	case msg.Type == tea.KeyCtrlC:
		return tea.Quit
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Next):
		return m.form.move(1)
	case key.Matches(msg, m.keys.Prev):
		return m.form.move(-1)
	}
	return m.form.update(msg)
}

func (m *Model) submit() tea.Cmd {
	switch m.form.kind {
	case formAdd:
		draft := m.form.draft()
		return m.mutate(formAdd, func(ctx context.Context) models.Status {
			return m.session.AddApp(ctx, &draft)
		})
	case formContact:
		contact := m.form.contact()
		return m.mutate(formContact, func(ctx context.Context) models.Status {
			return m.session.SendMessage(ctx, &contact)
		})
	}
	return nil
}
