package views

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/editor"
	"specbook/internal/adapters/tui/styles"
	"specbook/internal/domain"
)

// DetailKeyMap defines key bindings for the detail view
type DetailKeyMap struct {
	Open   key.Binding
	Copy   key.Binding
	Rescan key.Binding
	Back   key.Binding
}

var DetailKeys = DetailKeyMap{
	Open: key.NewBinding(
		key.WithKeys("enter", "e"),
		key.WithHelp("enter/e", "open in editor"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy path"),
	),
	Rescan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "q"),
		key.WithHelp("esc", "back"),
	),
}

// DetailModel shows the mapping entry of one feature
type DetailModel struct {
	ViewState
	node  domain.FeatureNode
	entry *domain.MappingEntry
	files []domain.RelatedFile
	table table.Model
}

// NewDetailModel creates a new detail view
func NewDetailModel() *DetailModel {
	t := table.New(
		table.WithColumns(detailColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(styles.Primary).Bold(true)
	s.Selected = styles.NodeSelected
	t.SetStyles(s)

	return &DetailModel{table: t}
}

func detailColumns(width int) []table.Column {
	desc := max(width-4-6-40-10-8, 20)
	return []table.Column{
		{Title: "Kind", Width: 6},
		{Title: "Path", Width: 40},
		{Title: "Lines", Width: 10},
		{Title: "Description", Width: desc},
	}
}

// SetEntry selects the feature to show. entry is nil for unmapped features.
func (m *DetailModel) SetEntry(node domain.FeatureNode, entry *domain.MappingEntry) {
	m.node = node
	m.entry = entry
	m.files = nil
	m.ClearMessage()

	var rows []table.Row
	if entry != nil {
		m.files = entry.Files()
		for _, f := range m.files {
			rows = append(rows, table.Row{string(f.Type), f.FilePath, f.LineRange, f.Description})
		}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

// SetSize updates the view dimensions
func (m *DetailModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	m.table.SetColumns(detailColumns(width))
	m.table.SetHeight(max(height-14, 3))
}

// Init initializes the detail view
func (m *DetailModel) Init() tea.Cmd {
	return nil
}

func (m *DetailModel) selectedFile() (domain.RelatedFile, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.files) {
		return domain.RelatedFile{}, false
	}
	return m.files[i], true
}

// Update handles messages for the detail view
func (m *DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DetailKeys.Back):
			return m, func() tea.Msg { return SwitchToDashboardMsg{} }

		case key.Matches(msg, DetailKeys.Open):
			if f, ok := m.selectedFile(); ok {
				path, line := f.FilePath, editor.FirstLine(f.LineRange)
				return m, func() tea.Msg { return OpenEditorMsg{Path: path, Line: line} }
			}
			return m, nil

		case key.Matches(msg, DetailKeys.Copy):
			if f, ok := m.selectedFile(); ok {
				if err := clipboard.WriteAll(f.FilePath); err != nil {
					m.SetMessage("Clipboard unavailable: "+err.Error(), true)
				} else {
					m.SetMessage("Copied "+f.FilePath, false)
				}
			}
			return m, nil

		case key.Matches(msg, DetailKeys.Rescan):
			id := m.node.ID
			return m, tea.Sequence(
				func() tea.Msg { return SwitchToDashboardMsg{} },
				func() tea.Msg { return RescanMsg{ObjectID: id} },
			)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the detail view
func (m *DetailModel) View() string {
	v := NewViewBuilder().Title(m.node.DisplayTitle(), m.node.ID)

	v.Line(styles.InputLabel.Render("Status: ") + RenderStatus(m.entry))
	if m.entry == nil {
		v.Muted("This feature has not been mapped yet. Press r to scan it.")
		v.Message(m.Message, m.MessageErr)
		v.Help(DetailKeys.Rescan, DetailKeys.Back)
		return v.String()
	}

	if m.entry.Summary != "" {
		v.Line(m.entry.Summary)
	}
	v.Muted(fmt.Sprintf("%d implementation files, %d test files",
		len(m.entry.ImplFiles), len(m.entry.TestFiles)))
	v.Line("")

	if len(m.files) == 0 {
		v.Muted("No related files.")
	} else {
		v.Line(m.table.View())
	}

	v.Message(m.Message, m.MessageErr)
	v.Help(DetailKeys.Open, DetailKeys.Copy, DetailKeys.Rescan, DetailKeys.Back)
	return v.String()
}
