// Package ui provides terminal output components using Charm libraries.
//
// This package contains the styling and rendering helpers for the StashQ
// CLI's terminal interface.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Brand colors for StashQ.
var (
	// Primary brand color - StashQ blue
	Blue = lipgloss.Color("#3B82F6")

	// Secondary colors
	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Blue)

	// SubtitleStyle for secondary headings
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// LinkStyle for URLs
	LinkStyle = lipgloss.NewStyle().
			Foreground(Blue).
			Underline(true)
)

// Box styles.
var (
	// BoxStyle for content boxes
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Blue).
			Padding(0, 1)

	// BoxTitleStyle for box titles
	BoxTitleStyle = lipgloss.NewStyle().
			Foreground(Blue).
			Bold(true)
)

// Table styles.
var (
	// TableHeaderStyle for table headers
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Bold(true).
				Padding(0, 2)

	// TableCellStyle for table cells
	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 2)
)

// Status indicator styles, keyed by job status category.
var (
	// StatusActiveStyle for jobs moving through the pipeline
	StatusActiveStyle = lipgloss.NewStyle().
				Foreground(Teal)

	// StatusQueuedStyle for jobs waiting to start
	StatusQueuedStyle = lipgloss.NewStyle().
				Foreground(Amber)

	// StatusPausedStyle for paused jobs
	StatusPausedStyle = lipgloss.NewStyle().
				Foreground(Gray)

	// StatusDoneStyle for completed and merged jobs
	StatusDoneStyle = lipgloss.NewStyle().
			Foreground(Green)

	// StatusFailedStyle for failed jobs
	StatusFailedStyle = lipgloss.NewStyle().
				Foreground(Red)
)

// Connection indicator styles.
var (
	// ConnConnectedStyle for an established stream
	ConnConnectedStyle = lipgloss.NewStyle().
				Foreground(Green)

	// ConnConnectingStyle for an attempt in progress
	ConnConnectingStyle = lipgloss.NewStyle().
				Foreground(Amber)

	// ConnDisconnectedStyle for no stream
	ConnDisconnectedStyle = lipgloss.NewStyle().
				Foreground(Red)
)
