// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Provides an interactive lead list and sync status screen

package tui

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/sync"
)

// ViewMode represents the current TUI view.
type ViewMode int

const (
	ViewLeads ViewMode = iota
	ViewSync
)

// Model is the main bubbletea model.
type Model struct {
	db          *sql.DB
	owner       string
	coordinator *sync.Coordinator
	viewMode    ViewMode

	// Lead list state
	leadTable table.Model

	// Sync view state
	syncing      bool
	syncMessages []string

	// UI state
	width  int
	height int
	err    error
}

// NewModel creates a new TUI model with the lead table loaded.
func NewModel(database *sql.DB, owner string, coordinator *sync.Coordinator) Model {
	m := Model{
		db:          database,
		owner:       owner,
		coordinator: coordinator,
		viewMode:    ViewLeads,
		width:       80,
		height:      24,
	}
	m.leadTable = newLeadTable()
	m.reloadLeads()
	return m
}

func newLeadTable() table.Model {
	columns := []table.Column{
		{Title: "Name", Width: 32},
		{Title: "Town", Width: 16},
		{Title: "Provider", Width: 12},
		{Title: "Status", Width: 12},
		{Title: "Phone", Width: 14},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	return t
}

func (m *Model) reloadLeads() {
	businesses, err := db.ListBusinesses(m.db, m.owner, db.BusinessFilter{})
	if err != nil {
		m.err = err
		return
	}
	rows := make([]table.Row, len(businesses))
	for i, b := range businesses {
		rows[i] = table.Row{b.Name, b.Town, b.Provider, b.Status, b.Phone}
	}
	m.leadTable.SetRows(rows)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.leadTable.SetHeight(m.height - 8)
		return m, nil
	case SyncCompleteMsg:
		m.syncing = false
		m.syncMessages = append(m.syncMessages, describeSyncResult(msg.Result))
		m.reloadLeads()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.viewMode == ViewLeads {
			m.viewMode = ViewSync
		} else {
			m.viewMode = ViewLeads
		}
		return m, nil
	}

	switch m.viewMode {
	case ViewSync:
		return m.handleSyncKeys(msg)
	default:
		var cmd tea.Cmd
		m.leadTable, cmd = m.leadTable.Update(msg)
		return m, cmd
	}
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewSync:
		return m.renderSyncView()
	default:
		return m.renderLeadsView()
	}
}

func (m Model) renderLeadsView() string {
	title := syncTitleStyle.Render(fmt.Sprintf("Leads • %d businesses", len(m.leadTable.Rows())))
	help := helpStyle.Render("↑/↓: navigate • Tab: sync status • q: quit")
	if m.err != nil {
		return title + "\n\n" + syncErrorStyle.Render("Error: "+m.err.Error()) + "\n\n" + help
	}
	return title + "\n\n" + m.leadTable.View() + "\n\n" + help
}

// Run starts the TUI in the alternate screen.
func Run(database *sql.DB, owner string, coordinator *sync.Coordinator) error {
	p := tea.NewProgram(NewModel(database, owner, coordinator), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
