// Package ui provides styled terminal output for the stagehand CLI
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// UI renders styled CLI output
type UI struct {
	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
	key     lipgloss.Style
	header  lipgloss.Style
	dim     lipgloss.Style
}

// NewUI creates a UI with the default styles
func NewUI() *UI {
	return &UI{
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		key:     lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Bold(true).Underline(true),
		dim:     lipgloss.NewStyle().Faint(true),
	}
}

// Success prints a green checkmarked message
func (u *UI) Success(msg string) {
	fmt.Println(u.success.Render("✓ " + msg))
}

// Error prints a red crossed message to stderr
func (u *UI) Error(msg string) {
	fmt.Fprintln(os.Stderr, u.failure.Render("✗ "+msg))
}

// Warn prints a yellow message
func (u *UI) Warn(msg string) {
	fmt.Println(u.warn.Render("! " + msg))
}

// Header prints a section header
func (u *UI) Header(msg string) {
	fmt.Println(u.header.Render(msg))
}

// KeyValue prints an aligned key/value pair
func (u *UI) KeyValue(key, value string) {
	fmt.Printf("  %s %s\n", u.key.Render(key+":"), value)
}

// Detail prints a dimmed detail line (e.g. buffered process output)
func (u *UI) Detail(msg string) {
	fmt.Println(u.dim.Render("  " + msg))
}
