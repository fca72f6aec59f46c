package popup

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#a78bfa")
	fgBase  = lipgloss.Color("#c0c0c0")
	fgMuted = lipgloss.Color("#808080")
	subtle  = lipgloss.Color("#585858")
	success = lipgloss.Color("#42b883")
	danger  = lipgloss.Color("#ff5555")
	warning = lipgloss.Color("#f1a208")

	frameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	labelStyle = lipgloss.NewStyle().
			Foreground(fgMuted).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgBase)

	exactStyle   = lipgloss.NewStyle().Foreground(subtle)
	onStyle      = lipgloss.NewStyle().Foreground(success).Bold(true)
	offStyle     = lipgloss.NewStyle().Foreground(fgMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(danger)
	confirmStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
)
