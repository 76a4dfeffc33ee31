package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/tui/views"
	"specbook/internal/application"
	"specbook/internal/ports"
)

// ViewState represents the current view
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewDetail
	ViewChangelog
	ViewReset
	ViewHelp
)

// App is the main TUI application model
type App struct {
	editor ports.EditorOpener

	state     ViewState
	dashboard *views.DashboardModel
	detail    *views.DetailModel
	changelog *views.ChangelogModel
	reset     *views.ResetModel
	help      *views.HelpModel

	width  int
	height int
}

// NewApp creates a new TUI application. ed may be nil, in which case files
// cannot be opened from the detail view.
func NewApp(scanner *application.Scanner, tree ports.ObjectTree, store ports.MappingStore, ed ports.EditorOpener) *App {
	return &App{
		editor:    ed,
		state:     ViewDashboard,
		dashboard: views.NewDashboardModel(scanner, tree),
		detail:    views.NewDetailModel(),
		changelog: views.NewChangelogModel(),
		reset:     views.NewResetModel(store),
		help:      views.NewHelpModel(),
	}
}

// Init initializes the application
func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

// Update handles messages for the application
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(msg.Width, msg.Height)
		a.detail.SetSize(msg.Width, msg.Height)
		a.changelog.SetSize(msg.Width, msg.Height)
		a.reset.SetSize(msg.Width, msg.Height)
		a.help.SetSize(msg.Width, msg.Height)
		return a, nil

	// View switching messages
	case views.SwitchToDetailMsg:
		a.state = ViewDetail
		a.detail.SetEntry(msg.Node, msg.Entry)
		return a, a.detail.Init()

	case views.SwitchToChangelogMsg:
		a.state = ViewChangelog
		a.changelog.SetIndex(msg.Index)
		return a, a.changelog.Init()

	case views.SwitchToResetMsg:
		a.state = ViewReset
		return a, a.reset.Init()

	case views.SwitchToHelpMsg:
		a.state = ViewHelp
		return a, nil

	case views.SwitchToDashboardMsg:
		a.state = ViewDashboard
		if msg.Reload {
			return a, a.dashboard.Reload()
		}
		return a, nil

	case views.OpenEditorMsg:
		return a, a.openEditor(msg.Path, msg.Line)

	case editorFinishedMsg:
		if msg.err != nil {
			a.detail.SetMessage(msg.err.Error(), true)
		}
		return a, nil
	}

	// Scan traffic belongs to the dashboard whichever view is in front
	var background tea.Cmd
	if a.state != ViewDashboard && !isKey(msg) {
		_, background = a.dashboard.Update(msg)
		if _, ok := msg.(views.RescanMsg); ok {
			a.state = ViewDashboard
			return a, background
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case ViewDashboard:
		_, cmd = a.dashboard.Update(msg)
	case ViewDetail:
		_, cmd = a.detail.Update(msg)
	case ViewChangelog:
		_, cmd = a.changelog.Update(msg)
	case ViewReset:
		_, cmd = a.reset.Update(msg)
	case ViewHelp:
		_, cmd = a.help.Update(msg)
	}

	return a, tea.Batch(background, cmd)
}

func isKey(msg tea.Msg) bool {
	_, ok := msg.(tea.KeyMsg)
	return ok
}

type editorFinishedMsg struct{ err error }

func (a *App) openEditor(path string, line int) tea.Cmd {
	if a.editor == nil {
		return nil
	}

	cmd, err := a.editor.Command(path, line)
	if err != nil {
		return func() tea.Msg {
			return editorFinishedMsg{err: err}
		}
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{err: err}
	})
}

// View renders the current view
func (a *App) View() string {
	switch a.state {
	case ViewDetail:
		return a.detail.View()
	case ViewChangelog:
		return a.changelog.View()
	case ViewReset:
		return a.reset.View()
	case ViewHelp:
		return a.help.View()
	default:
		return a.dashboard.View()
	}
}
