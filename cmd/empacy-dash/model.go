package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// fetchTimeout bounds one poll of the coordinator.
const fetchTimeout = 5 * time.Second

// tickMsg is sent on every refresh interval.
type tickMsg time.Time

// snapshotMsg carries a completed poll.
type snapshotMsg Snapshot

// ViewType represents different views in the dashboard.
type ViewType int

const (
	// OverviewView shows coordinator health and registry sizes.
	OverviewView ViewType = iota
	// AgentsView shows the agent table.
	AgentsView
	// ContextView shows context package statistics.
	ContextView
	// LanguageView shows ubiquitous-language statistics.
	LanguageView
	// JournalView shows recent failed operations.
	JournalView

	viewCount
)

// String returns the tab label for the view.
func (v ViewType) String() string {
	switch v {
	case AgentsView:
		return "Agents"
	case ContextView:
		return "Context"
	case LanguageView:
		return "Language"
	case JournalView:
		return "Journal"
	default:
		return "Overview"
	}
}

// Model is the Bubble Tea model for the empacy dashboard.
type Model struct {
	socket   string
	dbPath   string
	interval time.Duration

	activeView ViewType
	snap       Snapshot
	loaded     bool

	agents  table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	theme   Theme
	styles  Styles

	width  int
	height int
}

// newModel creates a Model polling socket and the journal at dbPath.
func newModel(socket, dbPath string, interval time.Duration) Model {
	theme := DefaultTheme()

	t := table.New(
		table.WithColumns(agentColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithWidth(tableWidth),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).Foreground(theme.Primary).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	ts.Selected = ts.Selected.Foreground(theme.Secondary).Bold(true)
	t.SetStyles(ts)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(theme.Primary)

	return Model{
		socket:   socket,
		dbPath:   dbPath,
		interval: interval,
		agents:   t,
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
		theme:    theme,
		styles:   NewStyles(theme),
	}
}

// tableWidth fits the agent columns plus cell padding.
const tableWidth = 110

func agentColumns() []table.Column {
	return []table.Column{
		{Title: "Agent ID", Width: 44},
		{Title: "Role", Width: 22},
		{Title: "Status", Width: 14},
		{Title: "Last Activity", Width: 12},
		{Title: "Missing", Width: 8},
	}
}

// tickCmd returns a command that sends a tickMsg after d.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd polls the coordinator and journal off the UI goroutine.
func (m Model) fetchCmd() tea.Cmd {
	socket, dbPath := m.socket, m.dbPath
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return snapshotMsg(fetchSnapshot(ctx, socket, dbPath))
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.spinner.Tick, tickCmd(m.interval))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if h := msg.Height - 8; h > 3 {
			m.agents.SetHeight(h)
		}
		m.agents.SetWidth(min(msg.Width, tableWidth))

	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.loaded = true
		m.agents.SetRows(agentRows(m.snap, time.Now()))

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd(m.interval))

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKeyPress processes keyboard input and returns updated model with optional command.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchCmd()
	case key.Matches(msg, m.keys.Next):
		m.activeView = (m.activeView + 1) % viewCount
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.activeView = (m.activeView + viewCount - 1) % viewCount
		return m, nil
	}

	if m.activeView == AgentsView {
		var cmd tea.Cmd
		m.agents, cmd = m.agents.Update(msg)
		return m, cmd
	}
	return m, nil
}
