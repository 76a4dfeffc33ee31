package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/tui/styles"
	"specbook/internal/application"
	"specbook/internal/application/commands"
	"specbook/internal/domain"
	"specbook/internal/ports"
)

// DashboardKeyMap defines key bindings for the dashboard
type DashboardKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Enter     key.Binding
	Scan      key.Binding
	Rescan    key.Binding
	Cancel    key.Binding
	Changelog key.Binding
	Reset     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var DashboardKeys = DashboardKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "collapse"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "expand"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Scan: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "scan all"),
	),
	Rescan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("x", "esc"),
		key.WithHelp("x", "cancel scan"),
	),
	Changelog: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "changelog"),
	),
	Reset: key.NewBinding(
		key.WithKeys("X"),
		key.WithHelp("X", "reset"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// treeRow is one visible line of the feature tree
type treeRow struct {
	node        domain.FeatureNode
	depth       int
	hasChildren bool
}

// DashboardModel shows the feature tree with mapping status and runs scans
type DashboardModel struct {
	ViewState
	scanner *application.Scanner
	tree    ports.ObjectTree

	forest    *domain.Forest
	index     *domain.FeatureMappingIndex
	collapsed map[string]bool
	rows      []treeRow
	paginator *Paginator
	loaded    bool

	spinner    spinner.Model
	progress   progress.Model
	scanning   bool
	scanLabel  string
	current    int
	total      int
	events     <-chan domain.ProgressEvent
	stopEvents func()
	cancelScan context.CancelFunc
}

// NewDashboardModel creates a new dashboard
func NewDashboardModel(scanner *application.Scanner, tree ports.ObjectTree) *DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.HelpKey

	return &DashboardModel{
		scanner:   scanner,
		tree:      tree,
		collapsed: make(map[string]bool),
		paginator: NewPaginator(20),
		spinner:   s,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

type dataLoadedMsg struct {
	forest *domain.Forest
	index  *domain.FeatureMappingIndex
}

type errMsg struct {
	err error
}

type progressMsg struct {
	event domain.ProgressEvent
}

type scanDoneMsg struct {
	message string
	err     error
}

// Init loads the feature tree and the mapping
func (m *DashboardModel) Init() tea.Cmd {
	return m.load
}

func (m *DashboardModel) load() tea.Msg {
	ctx := context.Background()
	forest, err := m.tree.LoadForest(ctx)
	if err != nil {
		return errMsg{err}
	}
	idx, err := m.scanner.LoadMapping(ctx)
	if err != nil {
		return errMsg{err}
	}
	return dataLoadedMsg{forest: forest, index: idx}
}

// Reload reloads the tree and mapping from disk
func (m *DashboardModel) Reload() tea.Cmd {
	return m.load
}

// Scanning reports whether a scan started from the dashboard is running
func (m *DashboardModel) Scanning() bool {
	return m.scanning
}

// Update handles messages for the dashboard
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case dataLoadedMsg:
		m.forest = msg.forest
		m.index = msg.index
		m.loaded = true
		m.refreshRows()
		return m, nil

	case errMsg:
		m.loaded = true
		m.SetMessage(msg.err.Error(), true)
		return m, nil

	case spinner.TickMsg:
		if m.scanning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case progressMsg:
		m.applyProgress(msg.event)
		return m, waitForProgress(m.events)

	case scanDoneMsg:
		m.finishScan()
		if msg.err != nil {
			m.SetMessage(scanErrorText(msg.err), true)
		} else {
			m.SetMessage(msg.message, false)
		}
		return m, m.load

	case RescanMsg:
		return m, m.startScan(msg.ObjectID)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.scanning {
		if key.Matches(msg, DashboardKeys.Cancel) && m.cancelScan != nil {
			m.cancelScan()
			m.scanLabel = "Cancelling..."
		}
		if key.Matches(msg, DashboardKeys.Quit) {
			if m.cancelScan != nil {
				m.cancelScan()
			}
			return tea.Quit
		}
		return nil
	}

	switch {
	case key.Matches(msg, DashboardKeys.Quit):
		return tea.Quit

	case key.Matches(msg, DashboardKeys.Up):
		m.paginator.CursorUp()

	case key.Matches(msg, DashboardKeys.Down):
		m.paginator.CursorDown()

	case key.Matches(msg, DashboardKeys.Left):
		if row, ok := m.selected(); ok {
			if row.hasChildren && !m.collapsed[row.node.ID] {
				m.collapsed[row.node.ID] = true
				m.refreshRows()
			} else if row.node.ParentID != "" {
				m.selectID(row.node.ParentID)
			}
		}

	case key.Matches(msg, DashboardKeys.Right):
		if row, ok := m.selected(); ok && row.hasChildren {
			delete(m.collapsed, row.node.ID)
			m.refreshRows()
		}

	case key.Matches(msg, DashboardKeys.Enter):
		if row, ok := m.selected(); ok {
			node := row.node
			var entry *domain.MappingEntry
			if e, found := m.index.Entry(node.ID); found {
				entry = &e
			}
			return func() tea.Msg { return SwitchToDetailMsg{Node: node, Entry: entry} }
		}

	case key.Matches(msg, DashboardKeys.Scan):
		return m.startScan("")

	case key.Matches(msg, DashboardKeys.Rescan):
		if row, ok := m.selected(); ok {
			return m.startScan(row.node.ID)
		}

	case key.Matches(msg, DashboardKeys.Changelog):
		if m.index == nil {
			m.SetMessage("No mapping yet, press s to scan", true)
			return nil
		}
		idx := m.index
		return func() tea.Msg { return SwitchToChangelogMsg{Index: idx} }

	case key.Matches(msg, DashboardKeys.Reset):
		return func() tea.Msg { return SwitchToResetMsg{} }

	case key.Matches(msg, DashboardKeys.Help):
		return func() tea.Msg { return SwitchToHelpMsg{} }
	}
	return nil
}

// startScan runs a full scan (objectID empty) or a rescan in the background
func (m *DashboardModel) startScan(objectID string) tea.Cmd {
	if m.scanning {
		return nil
	}
	m.ClearMessage()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelScan = cancel
	m.events, m.stopEvents = m.scanner.Subscribe(64)
	m.scanning = true
	m.current, m.total = 0, 0
	m.scanLabel = "Preparing scan..."

	scanner := m.scanner
	run := func() tea.Msg {
		defer cancel()
		if objectID == "" {
			result, err := commands.NewScanMappingCommand(scanner).Execute(ctx)
			if err != nil {
				return scanDoneMsg{err: err}
			}
			return scanDoneMsg{message: result.Message}
		}
		result, err := commands.NewScanObjectCommand(scanner, objectID).Execute(ctx)
		if err != nil {
			return scanDoneMsg{err: err}
		}
		return scanDoneMsg{message: result.Message}
	}

	return tea.Batch(m.spinner.Tick, waitForProgress(m.events), run)
}

// waitForProgress delivers the next progress event. It returns nil once
// the subscription is closed, which ends the chain.
func waitForProgress(events <-chan domain.ProgressEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return progressMsg{ev}
	}
}

func (m *DashboardModel) applyProgress(ev domain.ProgressEvent) {
	m.total = ev.Total
	switch ev.Status {
	case domain.ProgressScanning:
		if ev.ObjectID != "" {
			m.scanLabel = fmt.Sprintf("Asking provider about %s and %d features below it...", ev.ObjectTitle, ev.Total-1)
		} else {
			m.scanLabel = fmt.Sprintf("Asking provider about %d features...", ev.Total)
		}
	case domain.ProgressDone:
		m.current = ev.Current
		m.scanLabel = fmt.Sprintf("Mapped %s", ev.ObjectTitle)
	case domain.ProgressError:
		m.scanLabel = "Scan failed"
	}
}

func (m *DashboardModel) finishScan() {
	if m.stopEvents != nil {
		m.stopEvents()
	}
	m.stopEvents = nil
	m.events = nil
	m.cancelScan = nil
	m.scanning = false
}

func scanErrorText(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Scan cancelled, mapping unchanged"
	case errors.Is(err, application.ErrScanInProgress):
		return "Another scan is already running"
	default:
		return err.Error()
	}
}

func (m *DashboardModel) selected() (treeRow, bool) {
	i := m.paginator.Cursor()
	if i < 0 || i >= len(m.rows) {
		return treeRow{}, false
	}
	return m.rows[i], true
}

func (m *DashboardModel) selectID(id string) {
	for i, r := range m.rows {
		if r.node.ID == id {
			m.paginator.SetCursor(i)
			return
		}
	}
}

// refreshRows flattens the visible part of the forest, keeping the
// selection on the same feature when possible
func (m *DashboardModel) refreshRows() {
	var keep string
	if row, ok := m.selected(); ok {
		keep = row.node.ID
	}

	m.rows = m.rows[:0]
	if m.forest != nil {
		for _, n := range m.forest.Nodes() {
			if m.hiddenByAncestor(n) {
				continue
			}
			m.rows = append(m.rows, treeRow{
				node:        n,
				depth:       m.forest.Depth(n.ID),
				hasChildren: len(n.Children) > 0,
			})
		}
	}
	m.paginator.SetTotal(len(m.rows))
	if keep != "" {
		m.selectID(keep)
	}
}

func (m *DashboardModel) hiddenByAncestor(n domain.FeatureNode) bool {
	seen := map[string]bool{n.ID: true}
	for p := n.ParentID; p != "" && !seen[p]; {
		if m.collapsed[p] {
			return true
		}
		seen[p] = true
		parent, ok := m.forest.Node(p)
		if !ok {
			return false
		}
		p = parent.ParentID
	}
	return false
}

// SetSize updates the view dimensions and the number of visible rows
func (m *DashboardModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	m.paginator.SetPageSize(max(height-12, 5))
}

// View renders the dashboard
func (m *DashboardModel) View() string {
	if !m.loaded {
		return styles.App.Render("Loading...")
	}

	v := NewViewBuilder().Title("Specbook", m.summary())

	if len(m.rows) == 0 && m.forest != nil {
		v.Muted("No features defined. Add them to .specbook/objects.yaml")
	}

	start, end := m.paginator.VisibleRange()
	for i := start; i < end; i++ {
		v.Line(m.renderRow(m.rows[i], i == m.paginator.Cursor()))
	}
	if m.paginator.TotalPages() > 1 {
		v.Muted(fmt.Sprintf("page %d/%d", m.paginator.CurrentPage(), m.paginator.TotalPages()))
	}

	if m.scanning {
		v.Line("")
		v.Line(m.spinner.View() + " " + m.scanLabel)
		if m.total > 0 {
			v.Line(m.progress.ViewAs(float64(m.current) / float64(m.total)))
		}
		v.Help(DashboardKeys.Cancel, DashboardKeys.Quit)
		return v.String()
	}

	v.Message(m.Message, m.MessageErr)
	v.Help(
		DashboardKeys.Enter,
		DashboardKeys.Scan,
		DashboardKeys.Rescan,
		DashboardKeys.Changelog,
		DashboardKeys.Help,
		DashboardKeys.Quit,
	)
	return v.String()
}

func (m *DashboardModel) summary() string {
	if m.index == nil {
		return "No mapping yet, press s to scan"
	}
	counts := make(map[domain.MappingStatus]int)
	for _, e := range m.index.Entries {
		counts[e.Status]++
	}
	return fmt.Sprintf("%d implemented, %d partial, %d not found · scanned %s",
		counts[domain.StatusImplemented],
		counts[domain.StatusPartial],
		counts[domain.StatusNotFound],
		m.index.ScannedAt.Local().Format("2006-01-02 15:04"),
	)
}

func (m *DashboardModel) renderRow(r treeRow, selected bool) string {
	indent := strings.Repeat("  ", r.depth)

	prefix := styles.TreeLeaf
	if r.hasChildren {
		if m.collapsed[r.node.ID] {
			prefix = styles.TreeCollapsed
		} else {
			prefix = styles.TreeExpanded
		}
	}

	text := r.node.DisplayTitle()
	style := styles.NodeFeature
	if r.depth == 0 {
		style = styles.NodeRoot
	}
	if selected {
		style = styles.NodeSelected
	}

	var entry *domain.MappingEntry
	if e, ok := m.index.Entry(r.node.ID); ok {
		entry = &e
	}

	return fmt.Sprintf("%s%s%s %s  %s",
		indent,
		styles.TreeBranch.Render(prefix),
		style.Render(text),
		styles.NodeID.Render(r.node.ID),
		RenderStatus(entry),
	)
}

// RescanMsg asks the dashboard to rescan one feature
type RescanMsg struct {
	ObjectID string
}
