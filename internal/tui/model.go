package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-build-tasks/internal/orchestrator"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh running durations.
type TickMsg time.Time

// TaskStartedMsg reports a task entering Run.
type TaskStartedMsg struct {
	Name string
	At   time.Time
}

// TaskDoneMsg reports a task resolving.
type TaskDoneMsg struct {
	Name     string
	Duration time.Duration
	Outcome  task.Outcome
}

// CycleDoneMsg reports the end of a build cycle.
type CycleDoneMsg struct {
	Result orchestrator.CycleResult
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// taskState is the display state of one task row.
type taskState int

const (
	stateRunning taskState = iota
	stateSucceeded
	stateFailed
	stateCancelled
)

// taskRow is one line of the task table.
type taskRow struct {
	name     string
	state    taskState
	started  time.Time
	duration time.Duration
	detail   string
	runs     int
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	title       string
	metricsAddr string
	onRebuild   func()

	// Current state
	rows         []taskRow
	cycles       int
	failedCycles int
	lastCycle    string
	startTime    time.Time
	now          time.Time

	// Display options
	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	// Title is shown in the header. Defaults to "go-build-tasks".
	Title string

	MetricsAddr string

	// OnRebuild is called when the rebuild key is pressed. Optional.
	OnRebuild func()
}

// New creates a new TUI model.
func New(cfg Config) Model {
	title := cfg.Title
	if title == "" {
		title = "go-build-tasks"
	}
	now := time.Now()
	return Model{
		title:       title,
		metricsAddr: cfg.MetricsAddr,
		onRebuild:   cfg.OnRebuild,
		startTime:   now,
		now:         now,
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.onRebuild != nil {
				m.onRebuild()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case TaskStartedMsg:
		row := m.row(msg.Name)
		row.state = stateRunning
		row.started = msg.At
		row.duration = 0
		row.detail = ""
		return m, nil

	case TaskDoneMsg:
		row := m.row(msg.Name)
		row.duration = msg.Duration
		row.runs++
		row.state, row.detail = outcomeState(msg.Outcome)
		return m, nil

	case CycleDoneMsg:
		m.cycles++
		m.lastCycle = "ok"
		if msg.Result.Failed() {
			m.failedCycles++
			m.lastCycle = "failed"
		} else if msg.Result.Cancelled() {
			m.lastCycle = "cancelled"
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// row returns the row for name, appending one on first sight. The
// pointer is valid until the next append.
func (m *Model) row(name string) *taskRow {
	for i := range m.rows {
		if m.rows[i].name == name {
			return &m.rows[i]
		}
	}
	m.rows = append(m.rows, taskRow{name: name})
	return &m.rows[len(m.rows)-1]
}

func outcomeState(out task.Outcome) (taskState, string) {
	switch out.Kind {
	case task.KindSuccess:
		return stateSucceeded, ""
	case task.KindFailure:
		return stateFailed, out.Message
	case task.KindException:
		if out.Err != nil {
			return stateFailed, out.Err.Error()
		}
		return stateFailed, ""
	default:
		return stateCancelled, ""
	}
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 250ms.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the TUI started.
func (m Model) Elapsed() time.Duration {
	return m.now.Sub(m.startTime)
}

// Cycles returns the number of completed cycles and how many failed.
func (m Model) Cycles() (total, failed int) {
	return m.cycles, m.failedCycles
}

// Running returns the names of tasks currently running.
func (m Model) Running() []string {
	var names []string
	for _, r := range m.rows {
		if r.state == stateRunning {
			names = append(names, r.name)
		}
	}
	return names
}
