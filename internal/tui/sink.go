package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-build-tasks/internal/orchestrator"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards orchestrator events to the dashboard.
type ProgramSink struct {
	s Sender
}

var _ orchestrator.CancelSink = (*ProgramSink)(nil)

// NewProgramSink creates a sink sending to s.
func NewProgramSink(s Sender) *ProgramSink {
	return &ProgramSink{s: s}
}

// Started reports a task start.
func (p *ProgramSink) Started(name string) {
	p.s.Send(TaskStartedMsg{Name: name, At: time.Now()})
}

// Finished reports a successful task.
func (p *ProgramSink) Finished(name string, d time.Duration) {
	p.s.Send(TaskDoneMsg{Name: name, Duration: d, Outcome: task.Success()})
}

// Failed reports a failed task.
func (p *ProgramSink) Failed(name string, d time.Duration, out task.Outcome) {
	p.s.Send(TaskDoneMsg{Name: name, Duration: d, Outcome: out})
}

// Cancelled reports a cancelled task.
func (p *ProgramSink) Cancelled(name string, d time.Duration) {
	p.s.Send(TaskDoneMsg{Name: name, Duration: d, Outcome: task.Cancelled()})
}

// SendCycle reports a finished cycle.
func SendCycle(s Sender, result orchestrator.CycleResult) {
	if s != nil {
		s.Send(CycleDoneMsg{Result: result})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(s Sender) {
	if s != nil {
		s.Send(QuitMsg{})
	}
}
