package ui

import "github.com/charmbracelet/lipgloss"

// Palette is the colour scheme shared by the report and the interactive
// runner.
type Palette struct {
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
}

var palette = Palette{
	Primary:   lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"},
	Secondary: lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#06B6D4"},
	Success:   lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"},
	Warning:   lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"},
	Muted:     lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"},
}

var (
	bgMedium    = lipgloss.Color("#1E293B")
	textPrimary = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#F8FAFC"}
)

var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(palette.Primary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 2)

	badgeStyle = lipgloss.NewStyle().
			Background(palette.Secondary).
			Foreground(lipgloss.Color("#0F172A")).
			Bold(true).
			Padding(0, 1)

	passStyle = lipgloss.NewStyle().
			Background(palette.Success).
			Foreground(lipgloss.Color("#0F172A")).
			Bold(true).
			Padding(0, 1)

	failStyle = lipgloss.NewStyle().
			Background(palette.Error).
			Foreground(lipgloss.Color("#F8FAFC")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(palette.Muted)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(palette.Error)

	statusBarStyle = lipgloss.NewStyle().
			Background(bgMedium).
			Foreground(lipgloss.Color("#CBD5E1")).
			Padding(0, 1)

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary).
			Padding(0, 1)

	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(palette.Primary).
			Padding(1, 2)
)
