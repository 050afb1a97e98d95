// Package tui implements the live dashboard behind `pilot watch`: a
// bubbletea program rendering the current RUN/BLOCKED/DEAD state of every
// declared process as a graph runs, with the cause-event text of whatever
// is currently blocking it. Grounded on the teacher's internal/tui/model.go
// shape (a single Model struct driven by channel-fed tea.Msg values,
// Init/Update/View), generalized from a log viewport to a process table.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/output"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// StateUpdate is what the engine/detector side pushes down StateChan: the
// current per-process state and cause text, plus a running event count.
type StateUpdate struct {
	States  []domain.ProcState
	Causes  []string
	Names   []string
	Events  int
	Aborted bool
	Abort   string   // non-empty once the run has aborted
	Trace   []string // cycle traceback lines, populated alongside Abort
}

// StateMsg wraps a StateUpdate as a tea.Msg.
type StateMsg StateUpdate

// DoneMsg signals that the run has finished (cleanly or via abort).
type DoneMsg struct{ Err error }

// tickMsg drives the periodic repaint independent of new StateUpdates.
type tickMsg time.Time

// Model is the bubbletea model for `pilot watch`.
type Model struct {
	graphName string
	updates   <-chan StateUpdate
	done      <-chan error

	last  StateUpdate
	err   error
	start time.Time
	width int
}

// New builds a Model that renders StateUpdates received on updates until
// done fires.
func New(graphName string, updates <-chan StateUpdate, done <-chan error) Model {
	return Model{graphName: graphName, updates: updates, done: done, start: time.Now()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForDone(m.done), tick())
}

func waitForUpdate(ch <-chan StateUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg(u)
	}
}

func waitForDone(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err := <-ch
		return DoneMsg{Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case StateMsg:
		m.last = StateUpdate(msg)
		return m, waitForUpdate(m.updates)

	case DoneMsg:
		m.err = msg.Err
		m.last.Aborted = msg.Err != nil
		return m, tea.Quit

	case tickMsg:
		return m, tick()
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("pilot watch — %s", m.graphName)))
	b.WriteString("\n\n")

	for i, st := range m.last.States {
		name := fmt.Sprintf("rank %d", i)
		if i < len(m.last.Names) && m.last.Names[i] != "" {
			name = m.last.Names[i]
		}
		line := fmt.Sprintf("%-16s %s", name, output.StateStyle(st.String()).Render(st.String()))
		if i < len(m.last.Causes) && m.last.Causes[i] != "" {
			line += "  " + footerStyle.Render(m.last.Causes[i])
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("events=%d  elapsed=%s", m.last.Events, time.Since(m.start).Round(time.Second))))
	if m.last.Aborted {
		b.WriteString("\n")
		b.WriteString(output.Styles.Danger.Render("DEADLOCK: " + m.last.Abort))
		for _, line := range m.last.Trace {
			b.WriteString("\n")
			b.WriteString(footerStyle.Render(line))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("press q to quit"))
	return b.String()
}
