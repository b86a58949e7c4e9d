// Package tui prepares the terminal for the interactive browser.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI picks the lipgloss color profile. NO_COLOR disables color;
// CLICOLOR_FORCE=1 or COLORTERM=truecolor forces true color even when the
// output is not a terminal. Otherwise termenv's detection is used.
func InitializeTUI() {
	lipgloss.SetColorProfile(colorProfile())
}

func colorProfile() termenv.Profile {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return termenv.Ascii
	}
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		return termenv.TrueColor
	}
	return termenv.ColorProfile()
}
