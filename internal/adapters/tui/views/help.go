package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/tui/styles"
)

// HelpKeyMap defines key bindings for the help view
type HelpKeyMap struct {
	Close key.Binding
}

var HelpKeys = HelpKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc", "q", "?"),
		key.WithHelp("esc/q/?", "close"),
	),
}

// HelpModel is the model for the help view
type HelpModel struct {
	ViewState
}

// NewHelpModel creates a new help view model
func NewHelpModel() *HelpModel {
	return &HelpModel{}
}

// Init initializes the help view
func (m *HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view
func (m *HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, HelpKeys.Close) {
			return m, func() tea.Msg { return SwitchToDashboardMsg{} }
		}
	}

	return m, nil
}

// View renders the help view
func (m *HelpModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Specbook Help"))
	b.WriteString("\n\n")
	b.WriteString(styles.Subtitle.Render("Which files implement which feature"))
	b.WriteString("\n\n")

	section(&b, "Feature tree",
		"j / k / ↑ / ↓", "Move up/down",
		"h / ←", "Collapse / go to parent",
		"l / →", "Expand",
		"Enter", "Show mapped files",
	)
	section(&b, "Scanning",
		"s", "Scan the whole feature tree",
		"r", "Rescan the selected feature and its children",
		"x", "Cancel the running scan",
		"c", "Show the changelog of the last scan",
		"X", "Reset the mapping",
	)
	section(&b, "Feature details",
		"Enter / e", "Open file in $EDITOR at the mapped line",
		"y", "Copy file path",
	)
	section(&b, "General",
		"?", "Toggle help",
		"q / Ctrl+C", "Quit",
	)

	b.WriteString(styles.InputLabel.Render("Status"))
	b.WriteString("\n")
	for _, s := range []string{"implemented", "partial", "not_found", "unknown"} {
		b.WriteString("  ")
		b.WriteString(styles.StatusStyle(s).Render(s))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(styles.HelpDesc.Render("Press "))
	b.WriteString(styles.HelpKey.Render("esc"))
	b.WriteString(styles.HelpDesc.Render(" or "))
	b.WriteString(styles.HelpKey.Render("?"))
	b.WriteString(styles.HelpDesc.Render(" to close"))

	return styles.App.Render(b.String())
}

// section writes a titled block of key/description pairs
func section(b *strings.Builder, title string, pairs ...string) {
	b.WriteString(styles.InputLabel.Render(title))
	b.WriteString("\n")
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(helpLine(pairs[i], pairs[i+1]))
	}
	b.WriteString("\n")
}

func helpLine(key, desc string) string {
	return "  " + styles.HelpKey.Render(padRight(key, 20)) + styles.HelpDesc.Render(desc) + "\n"
}

func padRight(s string, length int) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return s + strings.Repeat(" ", length-n)
}
