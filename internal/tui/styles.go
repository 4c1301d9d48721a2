// Package tui provides a live terminal dashboard for build cycles.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Task state and duration per task
// - Failure details of the last run
// - Completed and failed cycle counts
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Task State Indicator
// =============================================================================

// stateIcon returns the styled marker for a task state.
func stateIcon(s taskState) string {
	switch s {
	case stateRunning:
		return statusWarning.Render("●")
	case stateSucceeded:
		return statusOK.Render("✓")
	case stateFailed:
		return statusError.Render("✗")
	default:
		return dimStyle.Render("○")
	}
}

// stateLabel returns the styled name of a task state.
func stateLabel(s taskState) string {
	switch s {
	case stateRunning:
		return statusWarning.Render("running")
	case stateSucceeded:
		return statusOK.Render("done")
	case stateFailed:
		return statusError.Render("failed")
	default:
		return dimStyle.Render("cancelled")
	}
}
