package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/tui/styles"
	"specbook/internal/domain"
)

// ChangelogKeyMap defines key bindings for the changelog view
type ChangelogKeyMap struct {
	ToggleUnchanged key.Binding
	Back            key.Binding
}

var ChangelogKeys = ChangelogKeyMap{
	ToggleUnchanged: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "toggle unchanged"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "q", "c"),
		key.WithHelp("esc", "back"),
	),
}

// ChangelogModel lists what the last scan changed
type ChangelogModel struct {
	ViewState
	index         *domain.FeatureMappingIndex
	showUnchanged bool
	rows          []domain.MappingChangeEntry
	table         table.Model
}

// NewChangelogModel creates a new changelog view
func NewChangelogModel() *ChangelogModel {
	t := table.New(
		table.WithColumns(changelogColumns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(styles.Primary).Bold(true)
	s.Selected = styles.NodeSelected
	t.SetStyles(s)

	return &ChangelogModel{table: t}
}

func changelogColumns(width int) []table.Column {
	summary := max(width-4-10-24-12-8, 20)
	return []table.Column{
		{Title: "Change", Width: 10},
		{Title: "Feature", Width: 24},
		{Title: "Status", Width: 12},
		{Title: "Summary", Width: summary},
	}
}

// SetIndex selects the index whose changelog is shown
func (m *ChangelogModel) SetIndex(idx *domain.FeatureMappingIndex) {
	m.index = idx
	m.refresh()
}

// Rows returns the changelog rows currently listed
func (m *ChangelogModel) Rows() []domain.MappingChangeEntry {
	return m.rows
}

func (m *ChangelogModel) refresh() {
	m.rows = m.rows[:0]
	var rows []table.Row
	if m.index != nil {
		for _, c := range m.index.Changelog {
			if c.ChangeType == domain.ChangeUnchanged && !m.showUnchanged {
				continue
			}
			m.rows = append(m.rows, c)
			rows = append(rows, table.Row{
				string(c.ChangeType),
				c.ObjectTitle,
				string(c.CurrentStatus),
				c.ChangeSummary,
			})
		}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func (m *ChangelogModel) selected() (domain.MappingChangeEntry, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return domain.MappingChangeEntry{}, false
	}
	return m.rows[i], true
}

// SetSize updates the view dimensions
func (m *ChangelogModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	m.table.SetColumns(changelogColumns(width))
	m.table.SetHeight(max(height-10, 3))
}

// Init initializes the changelog view
func (m *ChangelogModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the changelog view
func (m *ChangelogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, ChangelogKeys.Back):
			return m, func() tea.Msg { return SwitchToDashboardMsg{} }
		case key.Matches(msg, ChangelogKeys.ToggleUnchanged):
			m.showUnchanged = !m.showUnchanged
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the changelog view
func (m *ChangelogModel) View() string {
	subtitle := ""
	if m.index != nil {
		subtitle = "Scanned " + m.index.ScannedAt.Local().Format("2006-01-02 15:04")
		if u := m.index.TokenUsage; u != nil {
			subtitle += fmt.Sprintf(" · %d in / %d out tokens", u.InputTokens, u.OutputTokens)
		}
	}
	v := NewViewBuilder().Title("Changelog", subtitle)

	if len(m.rows) == 0 {
		v.Muted("Nothing changed in the last scan.")
	} else {
		v.Line(m.table.View())
		if c, ok := m.selected(); ok {
			v.Line("")
			v.Line(RenderChange(c.ChangeType) + " " + c.ObjectTitle)
			for _, f := range c.AddedFiles {
				v.Line(styles.ChangeAdded.Render("  + " + f.FilePath))
			}
			for _, f := range c.RemovedFiles {
				v.Line(styles.ChangeRemoved.Render("  - " + f.FilePath))
			}
		}
	}

	v.Help(ChangelogKeys.ToggleUnchanged, ChangelogKeys.Back)
	return v.String()
}
