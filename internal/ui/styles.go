package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/stratum/internal/stability"
)

// Semantic color palette, shared with the dashboard.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan: headers
	colorAccent  = lipgloss.Color("#FFD700") // Gold: demotions
	colorSuccess = lipgloss.Color("#00E676") // Green: promotions
	colorDanger  = lipgloss.Color("#FF5252") // Red: errors
	colorMuted   = lipgloss.Color("#636363") // Gray: de-emphasized
	colorWhite   = lipgloss.Color("#EEEEEE") // Off-white: primary text
)

var (
	styleHeader  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleLabel   = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	stylePromote = lipgloss.NewStyle().Foreground(colorSuccess)
	styleDemote  = lipgloss.NewStyle().Foreground(colorAccent)
	styleError   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
)

// TierColor returns the display color for a tier, most stable coolest.
func TierColor(tier stability.Tier) lipgloss.Color {
	switch tier {
	case stability.L0:
		return lipgloss.Color("#5B8DEF")
	case stability.L1:
		return lipgloss.Color("#00BFFF")
	case stability.L2:
		return lipgloss.Color("#00E676")
	case stability.L3:
		return lipgloss.Color("#FFD700")
	default:
		return lipgloss.Color("#FF8A65")
	}
}
