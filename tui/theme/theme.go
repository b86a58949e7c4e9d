// Package theme holds the lipgloss styles shared by the CLI help, command
// output and the browse TUI.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/appshelf/config"
)

const defaultThemeName = "kanagawa"

// Colors is the palette of a theme.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Blue      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	LightText lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
	Selection lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Name   string
	Colors Colors

	Header lipgloss.Style
	Title  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold     lipgloss.Style
	Italic   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	Box         lipgloss.Style
	Input       lipgloss.Style
	Placeholder lipgloss.Style
	Highlight   lipgloss.Style
	Accent      lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"kanagawa": newKanagawaColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is resolved from APPSHELF_THEME, then the "tui" config
// extension, then the built-in default.
var DefaultTheme = New(themeName())

// New builds the named theme. Unknown names fall back to the default.
func New(name string) *Theme {
	build, ok := themeRegistry[name]
	if !ok {
		name = defaultThemeName
		build = themeRegistry[name]
	}
	c := build()
	return &Theme{
		Name:   name,
		Colors: c,

		Header: lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(c.Blue),

		Success: lipgloss.NewStyle().Foreground(c.Green),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(c.Red),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan),

		Bold:     lipgloss.NewStyle().Bold(true),
		Italic:   lipgloss.NewStyle().Italic(true),
		Muted:    lipgloss.NewStyle().Foreground(c.MutedText),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(c.LightText).Background(c.Selection),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c.Border).
			Padding(0, 1),
		Input:       lipgloss.NewStyle().Foreground(c.LightText),
		Placeholder: lipgloss.NewStyle().Foreground(c.MutedText).Italic(true),
		Highlight:   lipgloss.NewStyle().Foreground(c.Yellow).Bold(true),
		Accent:      lipgloss.NewStyle().Foreground(c.Violet),
	}
}

// RenderStatus renders text with the style for kind: "success", "error",
// "warning", anything else is info.
func (t *Theme) RenderStatus(kind, text string) string {
	switch kind {
	case "success":
		return t.Success.Render(text)
	case "error":
		return t.Error.Render(text)
	case "warning":
		return t.Warning.Render(text)
	default:
		return t.Info.Render(text)
	}
}

func normalizeThemeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "_", "-")
}

func themeName() string {
	if name := normalizeThemeName(os.Getenv("APPSHELF_THEME")); name != "" {
		return name
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}
	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil {
		if name := normalizeThemeName(tuiCfg.Theme); name != "" {
			return name
		}
	}
	return defaultThemeName
}

func newKanagawaColors() Colors {
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
		Yellow:    lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
		Red:       lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
		Orange:    lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
		Cyan:      lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
		Blue:      lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
		Violet:    lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
		LightText: lipgloss.AdaptiveColor{Light: "#2B2F42", Dark: "#DCD7BA"},
		MutedText: lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
		Border:    lipgloss.AdaptiveColor{Light: "#B5BDC5", Dark: "#363646"},
		Selection: lipgloss.AdaptiveColor{Light: "#E2E6F3", Dark: "#223249"},
	}
}

// newTerminalColors uses the terminal's own 16-color palette.
func newTerminalColors() Colors {
	return Colors{
		Green:     lipgloss.Color("2"),
		Yellow:    lipgloss.Color("3"),
		Red:       lipgloss.Color("1"),
		Orange:    lipgloss.Color("11"),
		Cyan:      lipgloss.Color("6"),
		Blue:      lipgloss.Color("4"),
		Violet:    lipgloss.Color("5"),
		LightText: lipgloss.Color("7"),
		MutedText: lipgloss.Color("8"),
		Border:    lipgloss.Color("8"),
		Selection: lipgloss.Color("0"),
	}
}
