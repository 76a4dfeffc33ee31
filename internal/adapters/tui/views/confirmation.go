package views

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/tui/styles"
	"specbook/internal/application/commands"
	"specbook/internal/ports"
)

// ConfirmKeyMap defines key bindings for confirmation views
type ConfirmKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultConfirmKeys returns the default confirmation key bindings
var DefaultConfirmKeys = ConfirmKeyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}

// ResetModel asks before deleting the mapping index
type ResetModel struct {
	ViewState
	store ports.MappingStore
	Keys  ConfirmKeyMap
}

// NewResetModel creates a new reset confirmation view
func NewResetModel(store ports.MappingStore) *ResetModel {
	return &ResetModel{
		store: store,
		Keys:  DefaultConfirmKeys,
	}
}

type resetErrMsg struct {
	err error
}

// Init initializes the reset view
func (m *ResetModel) Init() tea.Cmd {
	m.ClearMessage()
	return nil
}

// Update handles messages for the reset view
func (m *ResetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case resetErrMsg:
		m.SetMessage(msg.err.Error(), true)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Cancel):
			return m, func() tea.Msg { return SwitchToDashboardMsg{} }
		case key.Matches(msg, m.Keys.Confirm):
			return m, m.reset
		}
	}
	return m, nil
}

func (m *ResetModel) reset() tea.Msg {
	if err := commands.NewResetMappingCommand(m.store).Execute(context.Background()); err != nil {
		return resetErrMsg{err}
	}
	return SwitchToDashboardMsg{Reload: true}
}

// View renders the reset confirmation
func (m *ResetModel) View() string {
	v := NewViewBuilder().Title("Reset mapping", "")
	v.Line("Every mapping entry and the changelog will be deleted.")
	v.Muted("The feature tree and the scan history are kept.")
	v.Line("")
	v.Line(RenderConfirmPrompt("Reset the mapping?"))
	v.Message(m.Message, m.MessageErr)
	return v.String()
}

// RenderConfirmPrompt renders the standard confirmation prompt
func RenderConfirmPrompt(question string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString(" ")
	b.WriteString(styles.HelpKey.Render("y"))
	b.WriteString(styles.HelpDesc.Render(" to confirm, "))
	b.WriteString(styles.HelpKey.Render("n"))
	b.WriteString(styles.HelpDesc.Render(" to cancel"))
	return b.String()
}
