package browse

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/appshelf/pkg/models"
)

type formKind int

const (
	formNone formKind = iota
	formAdd
	formContact
)

func (k formKind) title() string {
	switch k {
	case formAdd:
		return "Add application"
	case formContact:
		return "Contact"
	}
	return ""
}

// form is a vertical stack of labelled text inputs.
type form struct {
	kind   formKind
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(kind formKind, labels ...string) *form {
	f := &form{kind: kind, labels: labels}
	for _, label := range labels {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = strings.ToLower(strings.TrimSuffix(label, " *"))
		in.CharLimit = 512
		in.Width = 48
		f.inputs = append(f.inputs, in)
	}
	f.inputs[0].Focus()
	return f
}

func newAddForm() *form {
	return newForm(formAdd, "Name *", "Category *", "Description", "Version", "Download URL", "Icon URL", "Featured (y/n)")
}

func newContactForm() *form {
	return newForm(formContact, "Name *", "Email *", "Message *")
}

func (f *form) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

func (f *form) draft() models.AppDraft {
	featured := strings.ToLower(f.value(6))
	return models.AppDraft{
		Name:        f.value(0),
		Category:    f.value(1),
		Description: f.value(2),
		Version:     f.value(3),
		DownloadURL: f.value(4),
		IconURL:     f.value(5),
		Featured:    featured == "y" || featured == "yes" || featured == "true",
	}
}

func (f *form) contact() models.ContactForm {
	return models.ContactForm{
		Name:    f.value(0),
		Email:   f.value(1),
		Message: f.value(2),
	}
}
