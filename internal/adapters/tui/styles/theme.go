package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Muted     = lipgloss.Color("#6B7280") // Gray
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	White     = lipgloss.Color("#FFFFFF")

	// Base styles
	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Feature tree
	NodeRoot = lipgloss.NewStyle().
			Bold(true)

	NodeFeature = lipgloss.NewStyle()

	NodeSelected = lipgloss.NewStyle().
			Background(Primary).
			Foreground(White).
			Bold(true)

	NodeID = lipgloss.NewStyle().
		Foreground(Muted)

	TreeBranch    = lipgloss.NewStyle().Foreground(Muted)
	TreeExpanded  = "▼ "
	TreeCollapsed = "▶ "
	TreeLeaf      = "  "

	// Mapping status badges
	StatusImplemented = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	StatusPartial     = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	StatusNotFound    = lipgloss.NewStyle().Foreground(Error).Bold(true)
	StatusUnmapped    = lipgloss.NewStyle().Foreground(Muted)

	// Changelog
	ChangeAdded   = lipgloss.NewStyle().Foreground(Secondary)
	ChangeRemoved = lipgloss.NewStyle().Foreground(Error)
	ChangeChanged = lipgloss.NewStyle().Foreground(Warning)

	// Labels
	InputLabel = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Help styles
	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	HelpSeparator = lipgloss.NewStyle().
			Foreground(Muted).
			SetString(" • ")

	// Message styles
	Success = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	// Muted text style (for using Muted color as a style)
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// StatusStyle returns the badge style for a mapping status
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "implemented":
		return StatusImplemented
	case "partial":
		return StatusPartial
	case "not_found":
		return StatusNotFound
	default:
		return StatusUnmapped
	}
}

// ChangeStyle returns the style for a changelog change type
func ChangeStyle(change string) lipgloss.Style {
	switch change {
	case "added":
		return ChangeAdded
	case "removed":
		return ChangeRemoved
	case "changed":
		return ChangeChanged
	default:
		return MutedText
	}
}
