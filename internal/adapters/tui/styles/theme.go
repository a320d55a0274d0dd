package styles

import (
	"github.com/charmbracelet/lipgloss"

	"plansync/internal/domain"
)

var (
	// Colors
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Muted     = lipgloss.Color("#6B7280") // Gray
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	Info      = lipgloss.Color("#60A5FA") // Blue
	White     = lipgloss.Color("#FFFFFF")

	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	Row = lipgloss.NewStyle()

	RowSelected = lipgloss.NewStyle().
			Background(Primary).
			Foreground(White).
			Bold(true)

	StatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(White).
			Padding(0, 1)

	Label = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	InputField = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	HelpSeparator = lipgloss.NewStyle().
			Foreground(Muted).
			SetString(" • ")

	Success = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	// Conflict values: what was synced, what the user wrote, what the
	// service holds now
	Base   = lipgloss.NewStyle().Foreground(Muted)
	Local  = lipgloss.NewStyle().Foreground(Secondary)
	Remote = lipgloss.NewStyle().Foreground(Info)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// OutcomeColor returns the color an outcome is rendered in
func OutcomeColor(o domain.Outcome) lipgloss.Color {
	switch o {
	case domain.OutcomeSuccess:
		return Secondary
	case domain.OutcomeConflict:
		return Warning
	case domain.OutcomeRejected, domain.OutcomeFailed:
		return Error
	default:
		return Muted
	}
}

// SourceColor returns the color a change source is rendered in
func SourceColor(s domain.ChangeSource) lipgloss.Color {
	switch s {
	case domain.SourceUserEdit, domain.SourceNewItem:
		return Secondary
	case domain.SourceRemoteUpdate:
		return Info
	case domain.SourceBothConflicting:
		return Warning
	case domain.SourceRemovedItem:
		return Error
	default:
		return Muted
	}
}

// Outcome renders an outcome in its color
func Outcome(o domain.Outcome) string {
	return lipgloss.NewStyle().Foreground(OutcomeColor(o)).Bold(true).Render(string(o))
}

// Source renders a change source in its color
func Source(s domain.ChangeSource) string {
	return lipgloss.NewStyle().Foreground(SourceColor(s)).Render(string(s))
}
