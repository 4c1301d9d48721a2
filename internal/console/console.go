// Package console prints task start, finish and failure events as coloured
// lines with human-readable durations.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

var (
	colorStarted  = lipgloss.Color("#F59E0B") // Amber
	colorFinished = lipgloss.Color("#10B981") // Green
	colorFailed   = lipgloss.Color("#EF4444") // Red
	colorDuration = lipgloss.Color("#D946EF") // Magenta
	colorDetail   = lipgloss.Color("#9CA3AF") // Medium gray
)

// Printer writes one line per task event. It is safe for concurrent use.
type Printer struct {
	w  io.Writer
	mu sync.Mutex

	started  lipgloss.Style
	finished lipgloss.Style
	failed   lipgloss.Style
	duration lipgloss.Style
	detail   lipgloss.Style
}

// New creates a printer on w. Colours are dropped when w is not a terminal.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		started:  r.NewStyle().Foreground(colorStarted),
		finished: r.NewStyle().Foreground(colorFinished),
		failed:   r.NewStyle().Foreground(colorFailed).Bold(true),
		duration: r.NewStyle().Foreground(colorDuration),
		detail:   r.NewStyle().Foreground(colorDetail),
	}
}

// Started prints "[name] Starting...".
func (p *Printer) Started(name string) {
	p.println(p.started.Render(tag(name)), "Starting...")
}

// Finished prints "[name] Finished after <duration>".
func (p *Printer) Finished(name string, d time.Duration) {
	p.println(p.finished.Render(tag(name)), "Finished after", p.duration.Render(FormatDuration(d)))
}

// Failed prints "[name] Failed after <duration>" followed by the outcome
// detail when there is one.
func (p *Printer) Failed(name string, d time.Duration, out task.Outcome) {
	parts := []string{p.failed.Render(tag(name)), "Failed after", p.duration.Render(FormatDuration(d))}
	if detail := outcomeDetail(out); detail != "" {
		parts = append(parts, p.detail.Render("("+detail+")"))
	}
	p.println(parts...)
}

// Output prints captured lines of a task's output, indented under its tag.
func (p *Printer) Output(name string, lines []string) {
	if len(lines) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(p.w, p.detail.Render(tag(name)+" | "+line))
	}
}

func (p *Printer) println(parts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, strings.Join(parts, " "))
}

func tag(name string) string {
	return "[" + name + "]"
}

func outcomeDetail(out task.Outcome) string {
	switch out.Kind {
	case task.KindFailure:
		return out.Message
	case task.KindException:
		if out.Err != nil {
			return out.Err.Error()
		}
	}
	return ""
}
