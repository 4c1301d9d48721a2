package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/randomizedcoder/go-build-tasks/internal/process"
)

// ProcessOptions configures a ProcessTask.
type ProcessOptions struct {
	// Command is the executable to run. Required.
	Command string

	// Args are passed to Command in order.
	Args []string

	// Spawn options.
	Dir   string
	Env   []string
	Shell bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Stop is applied when the context passed to Run is cancelled.
	Stop StopConfig

	// OnSignal is called after each shutdown signal is delivered.
	// escalated is true for the forceful signal sent by the grace timer.
	OnSignal func(sig os.Signal, escalated bool)

	// Spawner starts the process. Defaults to process.ExecSpawner.
	Spawner process.Spawner

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ProcessTask runs an external process and supports staged cancellation.
//
// The pending completion and the process handle are claimed under mu by
// whichever path reaches them first (natural exit, Stop, or context
// cancellation). The claimer clears the field, so each is acted on once.
type ProcessTask struct {
	name    string
	opts    ProcessOptions
	spawner process.Spawner
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	pending chan Outcome
	handle  process.Handle

	// stopping is the handle claimed by a Stop that is still waiting for
	// the exit. A later forceful Stop escalates it.
	stopping process.Handle
}

// NewProcessTask creates a process task.
func NewProcessTask(name string, opts ProcessOptions) *ProcessTask {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = process.NewExecSpawner(logger)
	}
	return &ProcessTask{
		name:    name,
		opts:    opts,
		spawner: spawner,
		logger:  logger,
		state:   StateIdle,
	}
}

// Name returns the task name.
func (t *ProcessTask) Name() string {
	return t.name
}

// Type returns TypeProcess.
func (t *ProcessTask) Type() string {
	return TypeProcess
}

// State returns the current lifecycle state.
func (t *ProcessTask) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run spawns the process and blocks until it exits or the task is stopped.
//
// A process killed by a signal that did not come from Stop leaves Run
// pending; cancel ctx to release it.
func (t *ProcessTask) Run(ctx context.Context) Outcome {
	if ctx.Err() != nil {
		return Cancelled()
	}
	result, ok := t.launch()
	if !ok {
		return <-result
	}
	return t.await(ctx, result)
}

// launch spawns the process and registers result as the pending
// completion. When the spawn fails, result already holds the outcome and
// ok is false.
func (t *ProcessTask) launch() (result chan Outcome, ok bool) {
	result = make(chan Outcome, 1)

	// Spawn under the lock so a concurrent Stop observes the handle.
	t.mu.Lock()
	t.pending = result
	t.stopping = nil
	t.state = StateStarting
	h, err := t.spawner.Spawn(t.spec())
	if err != nil {
		t.pending = nil
		t.state = StateExited
		t.mu.Unlock()
		t.logger.Error("process_spawn_failed",
			"task", t.name,
			"command", t.opts.Command,
			"error", err,
		)
		result <- Exception(err)
		return result, false
	}
	t.handle = h
	t.state = StateRunning
	t.mu.Unlock()

	t.logger.Info("process_started",
		"task", t.name,
		"command", t.opts.Command,
		"args", t.opts.Args,
		"pid", h.PID(),
	)

	go t.watchExit(h, result)
	return result, true
}

// await blocks until result resolves or ctx is cancelled. On cancellation
// it stops the process with the configured StopConfig and returns once the
// process is gone.
func (t *ProcessTask) await(ctx context.Context, result chan Outcome) Outcome {
	select {
	case o := <-result:
		return o
	case <-ctx.Done():
	}

	if err := t.Stop(context.WithoutCancel(ctx), t.opts.Stop); err != nil {
		t.logger.Warn("process_stop_failed", "task", t.name, "error", err)
	}

	// A natural exit may have won the race.
	select {
	case o := <-result:
		return o
	default:
		return Cancelled()
	}
}

// watchExit maps the natural exit of h to an outcome on result.
func (t *ProcessTask) watchExit(h process.Handle, result chan Outcome) {
	<-h.Done()
	status := h.Status()

	t.mu.Lock()
	claimed := t.pending == result
	if claimed {
		t.pending = nil
	}
	if t.handle == h {
		t.handle = nil
		t.state = StateExited
	}
	if t.stopping == h {
		t.stopping = nil
	}
	t.mu.Unlock()

	t.logger.Info("process_exited",
		"task", t.name,
		"pid", h.PID(),
		"exit_code", status.Code,
		"signal", status.Signal,
	)

	// Killed by a signal: Stop is expected to supply Cancelled.
	if status.Signaled() || !claimed {
		return
	}

	switch {
	case status.Err != nil:
		result <- Exception(status.Err)
	case status.Code == 0:
		result <- Success()
	default:
		result <- Failure(fmt.Sprintf("process exited with code %d", status.Code))
	}
}

// Stop resolves a pending Run with Cancelled, then shuts the process down:
// a forceful signal when StopTimeout is 0, otherwise a polite signal
// followed by a forceful one after StopTimeout seconds unless it is -1.
// A Stop with StopTimeout 0 during an earlier, still waiting Stop sends
// the forceful signal at once. Stop returns after the process exits or
// ctx is done.
func (t *ProcessTask) Stop(ctx context.Context, cfg StopConfig) error {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	h := t.handle
	t.handle = nil
	if h != nil {
		t.state = StateStopping
		t.stopping = h
	}
	inProgress := t.stopping
	t.mu.Unlock()

	if pending != nil {
		pending <- Cancelled()
	}
	if h == nil {
		if inProgress == nil {
			return nil
		}
		return t.escalate(ctx, inProgress, cfg)
	}

	t.logger.Info("process_stopping",
		"task", t.name,
		"pid", h.PID(),
		"stop_timeout", cfg.StopTimeout,
	)

	var escalation *time.Timer
	grace, escalate := cfg.Grace()
	if escalate && grace == 0 {
		t.signal(h, TerminateSignal, false)
	} else {
		t.signal(h, InterruptSignal, false)
		if escalate {
			escalation = time.AfterFunc(grace, func() {
				select {
				case <-h.Done():
					return
				default:
				}
				t.logger.Warn("stop_escalated",
					"task", t.name,
					"pid", h.PID(),
					"grace", grace.String(),
				)
				t.signal(h, TerminateSignal, true)
			})
		}
	}

	select {
	case <-h.Done():
		if escalation != nil {
			escalation.Stop()
		}
		t.mu.Lock()
		if t.state == StateStopping {
			t.state = StateTerminated
		}
		if t.stopping == h {
			t.stopping = nil
		}
		t.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s to exit: %w", t.name, ctx.Err())
	}
}

// escalate handles a Stop that arrives while an earlier Stop is still
// waiting for h to exit. An immediate StopConfig forces the exit now; any
// other config leaves the earlier schedule in place. Either way it waits
// for the exit or ctx.
func (t *ProcessTask) escalate(ctx context.Context, h process.Handle, cfg StopConfig) error {
	select {
	case <-h.Done():
		return nil
	default:
	}

	if grace, ok := cfg.Grace(); ok && grace == 0 {
		t.logger.Warn("stop_forced",
			"task", t.name,
			"pid", h.PID(),
		)
		t.signal(h, TerminateSignal, true)
	}

	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s to exit: %w", t.name, ctx.Err())
	}
}

// signal delivers sig to h and notifies the observer.
func (t *ProcessTask) signal(h process.Handle, sig os.Signal, escalated bool) {
	err := h.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return
	}
	if err != nil {
		t.logger.Warn("process_signal_failed",
			"task", t.name,
			"signal", process.SignalName(sig),
			"error", err,
		)
		return
	}
	t.logger.Debug("process_signalled",
		"task", t.name,
		"signal", process.SignalName(sig),
		"escalated", escalated,
	)
	if t.opts.OnSignal != nil {
		t.opts.OnSignal(sig, escalated)
	}
}

func (t *ProcessTask) spec() process.Spec {
	return process.Spec{
		Command: t.opts.Command,
		Args:    t.opts.Args,
		Dir:     t.opts.Dir,
		Env:     t.opts.Env,
		Shell:   t.opts.Shell,
		Stdin:   t.opts.Stdin,
		Stdout:  t.opts.Stdout,
		Stderr:  t.opts.Stderr,
	}
}
