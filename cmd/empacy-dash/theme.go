package main

import (
	"empacy/pkg/protocol"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual styling for the empacy dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for empacy-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles holds the pre-built lipgloss styles derived from a Theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Online  lipgloss.Style
	Offline lipgloss.Style
	Failure lipgloss.Style
	Tab     lipgloss.Style
	TabOn   lipgloss.Style
	Panel   lipgloss.Style
}

// NewStyles builds the dashboard styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Label:   lipgloss.NewStyle().Foreground(theme.Secondary).Width(22),
		Value:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Online:  lipgloss.NewStyle().Foreground(theme.Success),
		Offline: lipgloss.NewStyle().Foreground(theme.Error),
		Failure: lipgloss.NewStyle().Foreground(theme.Warning),
		Tab:     lipgloss.NewStyle().Padding(0, 1).Foreground(theme.Muted),
		TabOn:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(theme.Primary).Underline(true),
		Panel:   lipgloss.NewStyle().Padding(1, 2),
	}
}

// statusStyle picks the colour for an agent status.
func statusStyle(theme Theme, status protocol.AgentStatus) lipgloss.Style {
	switch status {
	case protocol.StatusReady:
		return lipgloss.NewStyle().Foreground(theme.Success)
	case protocol.StatusInitializing:
		return lipgloss.NewStyle().Foreground(theme.Warning)
	case protocol.StatusError, protocol.StatusTerminated:
		return lipgloss.NewStyle().Foreground(theme.Error)
	default:
		return lipgloss.NewStyle().Foreground(theme.Muted)
	}
}
