package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-build-tasks/internal/console"
)

const (
	nameWidth   = 24
	stateWidth  = 10
	timeWidth   = 12
	detailWidth = 40
)

// renderDashboard renders the header, task table and footer.
func (m Model) renderDashboard() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTasks(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(" %s │ Cycles: %d │ Failed: %d │ Elapsed: %s ",
		m.title,
		m.cycles,
		m.failedCycles,
		formatDuration(m.Elapsed()),
	)
	if m.lastCycle != "" {
		header += fmt.Sprintf("│ Last: %s ", m.lastCycle)
	}
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Task Table
// =============================================================================

func (m Model) renderTasks() string {
	lines := []string{sectionHeaderStyle.Render("Tasks")}

	if len(m.rows) == 0 {
		lines = append(lines, dimStyle.Render("Waiting for the first task..."))
		return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %-*s %-*s %*s  %s",
		nameWidth, "Task", stateWidth, "State", timeWidth, "Duration", "Runs")))

	for _, r := range m.rows {
		lines = append(lines, m.renderRow(r))
		if r.detail != "" {
			lines = append(lines, "    "+dimStyle.Render(truncate(r.detail, detailWidth)))
		}
	}

	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderRow(r taskRow) string {
	d := r.duration
	if r.state == stateRunning {
		d = m.now.Sub(r.started)
	}

	label := lipgloss.NewStyle().Width(stateWidth).Render(stateLabel(r.state))
	return fmt.Sprintf("%s %-*s %s %*s  %s",
		stateIcon(r.state),
		nameWidth, truncate(r.name, nameWidth),
		label,
		timeWidth, console.FormatDuration(d),
		valueStyle.Render(fmt.Sprintf("%d", r.runs)),
	)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	text := "q: quit"
	if m.onRebuild != nil {
		text += " • r: rebuild"
	}
	if m.metricsAddr != "" {
		text += " • metrics: http://" + m.metricsAddr + "/metrics"
	}
	return footerStyle.Render(text)
}

func (m Model) boxWidth() int {
	if m.width < 20 {
		return 18
	}
	return m.width - 2
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
