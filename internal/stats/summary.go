package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// MetricsFile is where the text exposition was written, if anywhere
	MetricsFile string

	// PeakRunning is the highest number of tasks in flight at once
	PeakRunning int

	// OutputErrors maps task name to error-pattern counts in its captured
	// output. Empty unless output was captured.
	OutputErrors map[string]map[string]int
}

// FormatExitSummary formats recorded statistics for display at program exit.
func FormatExitSummary(s Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                          go-build-tasks Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Build Cycles:           %d\n", s.Cycles)
	fmt.Fprintf(&b, "Failed Cycles:          %d\n", s.FailedCycles)
	if cfg.PeakRunning > 0 {
		fmt.Fprintf(&b, "Peak Tasks In Flight:   %d\n", cfg.PeakRunning)
	}
	b.WriteString("\n")

	if len(s.Tasks) > 0 {
		b.WriteString(ruleLight)
		b.WriteString("                                    Tasks\n")
		b.WriteString(ruleLight + "\n")

		fmt.Fprintf(&b, "  %-18s %-15s %5s %5s %5s %5s %5s %9s %9s %9s\n",
			"Task", "Type", "Runs", "OK", "Fail", "Exc", "Cxl", "P50", "P95", "Max")
		b.WriteString("  " + strings.Repeat("─", 95) + "\n")
		for _, ts := range s.Tasks {
			fmt.Fprintf(&b, "  %-18s %-15s %5d %5d %5d %5d %5d %9s %9s %9s\n",
				truncate(ts.Name, 18),
				ts.Type,
				ts.Runs,
				ts.Successes,
				ts.Failures,
				ts.Exceptions,
				ts.Cancelled,
				FormatMs(ts.P50),
				FormatMs(ts.P95),
				FormatMs(ts.Max),
			)
		}
		b.WriteString("\n")

		var failed []TaskSummary
		for _, ts := range s.Tasks {
			if ts.Last.Failed() {
				failed = append(failed, ts)
			}
		}
		if len(failed) > 0 {
			b.WriteString(ruleLight)
			b.WriteString("                              Last Failures\n")
			b.WriteString(ruleLight + "\n")
			for _, ts := range failed {
				fmt.Fprintf(&b, "  %-18s %s\n", truncate(ts.Name, 18), ts.Last.String())
			}
			b.WriteString("\n")
		}
	}

	if section := formatOutputErrors(s.Tasks, cfg.OutputErrors); section != "" {
		b.WriteString(ruleLight)
		b.WriteString("                              Output Errors\n")
		b.WriteString(ruleLight + "\n")
		b.WriteString(section)
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.MetricsFile != "" {
		fmt.Fprintf(&b, "Metrics written to:   %s\n", cfg.MetricsFile)
	}

	b.WriteString(ruleHeavy)

	return b.String()
}

// formatOutputErrors lists pattern counts per task, tasks in summary order
// and patterns sorted by name.
func formatOutputErrors(tasks []TaskSummary, counts map[string]map[string]int) string {
	var b strings.Builder
	for _, ts := range tasks {
		patterns := counts[ts.Name]
		names := make([]string, 0, len(patterns))
		for p, n := range patterns {
			if n > 0 {
				names = append(names, p)
			}
		}
		sort.Strings(names)
		for _, p := range names {
			fmt.Fprintf(&b, "  %-18s %-20s %5d\n", truncate(ts.Name, 18), p, patterns[p])
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
