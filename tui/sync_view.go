// ABOUTME: TUI view for sync status and controls
// ABOUTME: Displays connectivity, pending operations, and last sync time, and triggers syncs

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsync/sync"
)

var (
	syncTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	syncHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	syncLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(14)

	syncOnlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	syncErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// SyncCompleteMsg is sent when a sync pass completes.
type SyncCompleteMsg struct {
	Result *sync.SyncResult
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "s":
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		return m, syncCmd(m.coordinator)
	case "o":
		status := m.coordinator.Status()
		m.coordinator.EnableOfflineMode(status.Online)
		return m, nil
	case "r":
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		return m, retryCmd(m.coordinator)
	}
	return m, nil
}

func syncCmd(coordinator *sync.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return SyncCompleteMsg{Result: coordinator.SyncNow(context.Background())}
	}
}

func retryCmd(coordinator *sync.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return SyncCompleteMsg{Result: coordinator.Retry(context.Background())}
	}
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(syncTitleStyle.Render("Sync Status"))
	s.WriteString("\n\n")

	status := m.coordinator.Status()

	s.WriteString(syncHeaderStyle.Render("Connection"))
	s.WriteString("\n\n")

	s.WriteString(syncLabelStyle.Render("Server"))
	if status.Online {
		s.WriteString(syncOnlineStyle.Render("● Online"))
	} else {
		s.WriteString(syncErrorStyle.Render("○ Offline"))
	}
	s.WriteString("\n")

	s.WriteString(syncLabelStyle.Render("State"))
	if m.syncing || status.Syncing {
		s.WriteString(syncSyncingStyle.Render("⟳ Syncing..."))
	} else {
		s.WriteString(syncOnlineStyle.Render("✓ Idle"))
	}
	s.WriteString("\n")

	s.WriteString(syncLabelStyle.Render("Pending"))
	if status.PendingOps > 0 {
		s.WriteString(syncSyncingStyle.Render(fmt.Sprintf("%d queued operation(s)", status.PendingOps)))
	} else {
		s.WriteString(syncMessageStyle.Render("none"))
	}
	s.WriteString("\n")

	s.WriteString(syncLabelStyle.Render("Last sync"))
	s.WriteString(syncMessageStyle.Render(humanizeLastSync(status.LastSync)))
	s.WriteString("\n\n")

	if len(m.syncMessages) > 0 {
		s.WriteString(syncHeaderStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		start := 0
		if len(m.syncMessages) > 5 {
			start = len(m.syncMessages) - 5
		}
		for i := start; i < len(m.syncMessages); i++ {
			s.WriteString(syncMessageStyle.Render("  " + m.syncMessages[i]))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("Enter: sync now • r: retry queued • o: toggle offline • Tab: leads • q: quit"))
	return s.String()
}

func humanizeLastSync(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	elapsed := time.Since(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d minute(s) ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d hour(s) ago", int(elapsed.Hours()))
	}
	return t.Local().Format("2006-01-02 15:04")
}

func describeSyncResult(r *sync.SyncResult) string {
	stamp := r.Timestamp.Local().Format("15:04:05")
	if r.Success {
		return fmt.Sprintf("%s synced %d record(s)", stamp, r.SyncedCount)
	}
	msg := fmt.Sprintf("%s sync failed (%d ok, %d failed)", stamp, r.SyncedCount, r.FailedCount)
	if len(r.Errors) > 0 {
		msg += ": " + r.Errors[0].Message
	}
	return msg
}
