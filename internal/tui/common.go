// Package tui provides the Bubble Tea live monitor for the StashQ CLI.
//
// The TUI launches when a human runs `stashq watch` in an interactive
// terminal. It is never activated for agents, CI/CD, or piped output --
// two independent gates (--quiet, isatty) prevent it.
package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ShouldRunTUI returns true if the TUI should be launched.
// Returns false when stdout is not a terminal or --quiet is set.
//
// Parameters:
//   - quiet: whether --quiet was passed
//
// Returns:
//   - bool: true if the TUI should run
func ShouldRunTUI(quiet bool) bool {
	if quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// --- Brand colors (mirrors internal/ui/styles.go) ---

var (
	blue    = lipgloss.Color("#3B82F6")
	teal    = lipgloss.Color("#14B8A6")
	red     = lipgloss.Color("#EF4444")
	amber   = lipgloss.Color("#F59E0B")
	green   = lipgloss.Color("#22C55E")
	gray    = lipgloss.Color("#6B7280")
	dimGray = lipgloss.Color("#9CA3AF")
	white   = lipgloss.Color("#E5E7EB")
)

// --- Shared TUI styles ---

var (
	// titleStyle renders the STASHQ header.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(blue)

	// sectionStyle renders section headers (e.g. "Jobs", "Notifications").
	sectionStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			Bold(true).
			MarginTop(1)

	// normalStyle renders list items.
	normalStyle = lipgloss.NewStyle().
			Foreground(white)

	// dimStyle renders low-priority text.
	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	// successStyle renders healthy/connected indicators.
	successStyle = lipgloss.NewStyle().
			Foreground(green)

	// errorStyle renders failed/disconnected indicators.
	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	// warningStyle renders degraded/connecting indicators.
	warningStyle = lipgloss.NewStyle().
			Foreground(amber)

	// runningStyle renders active job indicators.
	runningStyle = lipgloss.NewStyle().
			Foreground(teal)

	// helpStyle renders the bottom key hint bar.
	helpStyle = lipgloss.NewStyle().
			Foreground(gray)

	// separatorStyle renders horizontal rules.
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))
)

// separator returns a horizontal line of the given width.
func separator(width int) string {
	s := ""
	for i := 0; i < width; i++ {
		s += "─"
	}
	return separatorStyle.Render(s)
}

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(teal)
	return s
}
