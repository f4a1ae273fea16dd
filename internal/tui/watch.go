// Package tui renders a live view of all tracked sessions' status lines.
// It is a read-only window onto the status subjects; all state lives in the
// tracker.
package tui

import (
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(1)

	sessionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().Faint(true)

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(1)
)

// StatusMsg is one status line update for a session.
type StatusMsg struct {
	Session string
	Text    string
	At      time.Time
}

type statusEntry struct {
	text string
	at   time.Time
}

// Model is the watch view: one row per tracked session.
type Model struct {
	updates  <-chan StatusMsg
	statuses map[string]statusEntry
	width    int
	quitting bool
}

// New creates the watch model. The updates channel is fed by the NATS status
// subscription; closing it quits the view.
func New(updates <-chan StatusMsg) Model {
	return Model{
		updates:  updates,
		statuses: make(map[string]statusEntry),
	}
}

func waitForStatus(updates <-chan StatusMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return tea.QuitMsg{}
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return waitForStatus(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusMsg:
		if msg.At.IsZero() {
			msg.At = time.Now()
		}
		m.statuses[msg.Session] = statusEntry{text: msg.Text, at: msg.At}
		return m, waitForStatus(m.updates)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("prtrackr"))
	b.WriteString("\n\n")

	if len(m.statuses) == 0 {
		b.WriteString(dimStyle.Render(" waiting for sessions..."))
		b.WriteString("\n")
	} else {
		ids := make([]string, 0, len(m.statuses))
		for id := range m.statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			entry := m.statuses[id]
			b.WriteString(" ")
			b.WriteString(sessionStyle.Render(id))
			b.WriteString("  ")
			b.WriteString(entry.text)
			b.WriteString("  ")
			b.WriteString(dimStyle.Render(entry.at.Format("15:04:05")))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}
