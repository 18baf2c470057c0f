// Package ui renders engine output for the terminal.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles holds the terminal styles used by the CLI renderers.
type Styles struct {
	Title   lipgloss.Style
	Score   lipgloss.Style
	Path    lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
}

// NewStyles returns colored styles when enabled, plain passthrough
// styles otherwise.
func NewStyles(colored bool) *Styles {
	if !colored {
		return &Styles{}
	}
	return &Styles{
		Title:   lipgloss.NewStyle().Bold(true),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

// StdoutIsTerminal reports whether stdout is an interactive terminal.
// Piped output gets plain text.
func StdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
