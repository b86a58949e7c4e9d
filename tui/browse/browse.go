package browse

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/appshelf/tui"
)

// Run shows the browser until the user quits or ctx is done.
func Run(ctx context.Context, session Session, opts Options) error {
	tui.InitializeTUI()
	p := tea.NewProgram(New(ctx, session, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
