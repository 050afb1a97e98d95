package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all lipgloss styles for text/TUI output.
var Styles = struct {
	// Opcode styles
	Write     lipgloss.Style
	Read      lipgloss.Style
	Select    lipgloss.Style
	Broadcast lipgloss.Style
	Gather    lipgloss.Style
	Finish    lipgloss.Style

	// Process-state styles
	Run     lipgloss.Style
	Blocked lipgloss.Style
	Dead    lipgloss.Style

	// Component styles
	Timestamp lipgloss.Style
	Process   lipgloss.Style
	Subsystem lipgloss.Style

	// Summary styles
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style
	Info    lipgloss.Style

	// TUI styles
	Title     lipgloss.Style
	StatusBar lipgloss.Style
	Selected  lipgloss.Style
	Help      lipgloss.Style
}{
	Write:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),  // cyan
	Read:      lipgloss.NewStyle().Foreground(lipgloss.Color("142")), // yellow-green
	Select:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),  // blue
	Broadcast: lipgloss.NewStyle().Foreground(lipgloss.Color("213")), // pink
	Gather:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
	Finish:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // gray

	Run:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),                             // green
	Blocked: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),                 // orange bold
	Dead:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Underline(true), // red bold underline

	Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	Process:   lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	Subsystem: lipgloss.NewStyle().Foreground(lipgloss.Color("142")),

	Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("239")),
	Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	Value:   lipgloss.NewStyle().Bold(true),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),

	Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1),
	StatusBar: lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("252")).Padding(0, 1),
	Selected:  lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("39")),
	Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
}

// OpcodeStyle returns the style for an opcode mnemonic.
func OpcodeStyle(opcode string) lipgloss.Style {
	switch opcode {
	case "Wri":
		return Styles.Write
	case "Rea":
		return Styles.Read
	case "Sel", "Try", "Has":
		return Styles.Select
	case "Bro":
		return Styles.Broadcast
	case "Gat":
		return Styles.Gather
	case "FIN":
		return Styles.Finish
	default:
		return Styles.Label
	}
}

// OpcodeIndicator returns a styled 3-letter opcode indicator.
func OpcodeIndicator(opcode string) string {
	return OpcodeStyle(opcode).Render(opcode)
}

// StateStyle returns the style for a process state name ("RUN"/"BLOCKED"/"DEAD").
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "RUN":
		return Styles.Run
	case "BLOCKED":
		return Styles.Blocked
	case "DEAD":
		return Styles.Dead
	default:
		return Styles.Label
	}
}

// StatusText returns styled overall run status text.
func StatusText(aborted bool) string {
	if aborted {
		return Styles.Danger.Render("DEADLOCK")
	}
	return Styles.Success.Render("OK")
}
