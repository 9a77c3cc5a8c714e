package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/stratum/internal/stability"
)

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan: primary accent
	colorAccent     = lipgloss.Color("#FFD700") // Gold: demotions/warnings
	colorSuccess    = lipgloss.Color("#00E676") // Green: promotions
	colorDanger     = lipgloss.Color("#FF5252") // Red: errors
	colorMuted      = lipgloss.Color("#636363") // Gray: de-emphasized
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray: normal text
	colorWhite      = lipgloss.Color("#EEEEEE") // Off-white: primary text
	colorSurface    = lipgloss.Color("#1E1E2E") // Dark surface: status bar bg
	colorSurfaceDim = lipgloss.Color("#181825") // Darkest surface: footer bg
	colorBlue       = lipgloss.Color("#5B8DEF") // Blue: L0
)

// Status bar styles: visually dominant with solid background.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(colorSurface).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	styleStatusLabel = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	styleStatusValue = lipgloss.NewStyle().
				Foreground(colorWhite)
)

// Body styles.
var (
	styleTierHeader = lipgloss.NewStyle().Bold(true)

	styleItem = lipgloss.NewStyle().
			Foreground(colorMutedLight)

	styleUnderfilled = lipgloss.NewStyle().
				Foreground(colorAccent)

	styleSectionTitle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				MarginTop(1)

	stylePromote = lipgloss.NewStyle().Foreground(colorSuccess)
	styleDemote  = lipgloss.NewStyle().Foreground(colorAccent)
	styleError   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)

// Footer style.
var styleFooter = lipgloss.NewStyle().
	Background(colorSurfaceDim).
	Foreground(colorMuted).
	Padding(0, 1)

// styleTier returns the header style for a tier, most stable coolest.
func styleTier(tier stability.Tier) lipgloss.Style {
	switch tier {
	case stability.L0:
		return styleTierHeader.Foreground(colorBlue)
	case stability.L1:
		return styleTierHeader.Foreground(colorPrimary)
	case stability.L2:
		return styleTierHeader.Foreground(colorSuccess)
	case stability.L3:
		return styleTierHeader.Foreground(colorAccent)
	default:
		return styleTierHeader.Foreground(colorWhite)
	}
}
