package ui

import "github.com/charmbracelet/lipgloss"

// Some predefined colors

var (
	ColorRed        = lipgloss.Color("1")
	ColorWhite      = lipgloss.Color("7")
	ColorBrightBlue = lipgloss.Color("33")
	ColorLightGray  = lipgloss.Color("243")
	ColorGray       = lipgloss.Color("238")
	ColorOrange     = lipgloss.Color("214")
)

type Theme struct {
	BorderContainerStyle lipgloss.Style

	MutedTextStyle   lipgloss.Style
	ErrorTextStyle   lipgloss.Style
	ActivityStyle    lipgloss.Style
	PrimaryTextStyle lipgloss.Style

	BreadcrumbBarStyle lipgloss.Style
	HelpBarStyle       lipgloss.Style
}

var DarkTheme = Theme{
	BorderContainerStyle: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGray),

	MutedTextStyle: lipgloss.NewStyle().
		Foreground(ColorLightGray),
	ErrorTextStyle: lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true),
	ActivityStyle: lipgloss.NewStyle().
		Foreground(ColorOrange).
		Bold(true),
	PrimaryTextStyle: lipgloss.NewStyle().
		Foreground(ColorBrightBlue),

	BreadcrumbBarStyle: lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorBrightBlue).
		Foreground(ColorWhite),
	HelpBarStyle: lipgloss.NewStyle().
		Padding(0, 1),
}
