package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guseggert/pyconsole/console"
)

// Theme holds the styles for one color scheme.
type Theme struct {
	Name    string
	Title   lipgloss.Style
	State   lipgloss.Style
	Source  lipgloss.Style
	History lipgloss.Style
	Echo    lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
}

func Dark() Theme {
	return Theme{
		Name:    "dark",
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5E7EB")).Background(lipgloss.Color("#1F2937")).Padding(0, 1),
		State:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		Source:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4B5563")).Foreground(lipgloss.Color("#D1D5DB")).Padding(0, 1),
		History: lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399")),
		Echo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

func Light() Theme {
	return Theme{
		Name:    "light",
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#111827")).Background(lipgloss.Color("#E5E7EB")).Padding(0, 1),
		State:   lipgloss.NewStyle().Foreground(lipgloss.Color("#B45309")),
		Source:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#9CA3AF")).Foreground(lipgloss.Color("#1F2937")).Padding(0, 1),
		History: lipgloss.NewStyle().Foreground(lipgloss.Color("#047857")),
		Echo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#1D4ED8")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#B91C1C")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

// ThemeByName returns the light theme for "light" and the dark theme otherwise.
func ThemeByName(name string) Theme {
	if name == "light" {
		return Light()
	}
	return Dark()
}

func (t Theme) toggle() Theme {
	if t.Name == "light" {
		return Dark()
	}
	return Light()
}

func (t Theme) renderLine(line string) string {
	switch {
	case strings.HasPrefix(line, console.EchoPrefix):
		return t.Echo.Render(line)
	case strings.HasPrefix(line, "Error"):
		return t.Error.Render(line)
	default:
		return t.History.Render(line)
	}
}
