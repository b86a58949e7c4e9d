package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/grovetools/appshelf/tui/theme"
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// NewTable creates a bordered table in the current theme.
func NewTable(headers ...string) *ltable.Table {
	t := theme.DefaultTheme
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.Bold.Padding(0, 1).Foreground(t.Colors.Blue)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// PrintStatus renders a mutation status. Failures are returned as errors so
// the command exits non-zero.
func PrintStatus(w io.Writer, jsonOutput bool, status models.Status) error {
	if jsonOutput {
		if err := PrintJSON(w, status); err != nil {
			return err
		}
	} else if status.Kind == models.StatusSuccess {
		fmt.Fprintln(w, theme.DefaultTheme.Success.Render(status.Message))
	}
	if status.Kind == models.StatusError {
		if status.Err != nil {
			return status.Err
		}
		return fmt.Errorf("%s", status.Message)
	}
	return nil
}
