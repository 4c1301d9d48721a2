package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// PipeDrainDelay bounds how long output is still copied after the process
// itself has exited. Background children that inherited the pipes would
// otherwise delay the exit notification until they exit too.
const PipeDrainDelay = 500 * time.Millisecond

// ExecSpawner spawns real OS processes with os/exec.
type ExecSpawner struct {
	logger *slog.Logger
}

// NewExecSpawner creates a spawner. A nil logger discards spawn logs.
func NewExecSpawner(logger *slog.Logger) *ExecSpawner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecSpawner{logger: logger}
}

// Spawn starts the command described by spec and begins waiting on it.
func (s *ExecSpawner) Spawn(spec Spec) (Handle, error) {
	cmd, err := BuildCommand(spec)
	if err != nil {
		return nil, err
	}

	// Own process group so signals reach children of shells and package
	// managers as well.
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	h := &execHandle{
		cmd:     cmd,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	s.logger.Debug("process_spawned",
		"command", spec.Command,
		"args", spec.Args,
		"pid", cmd.Process.Pid,
	)

	go h.waitLoop(s.logger)

	return h, nil
}

// BuildCommand returns a ready-to-start command for spec. The command is
// not started.
func BuildCommand(spec Spec) (*exec.Cmd, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, ErrEmptyCommand
	}

	var cmd *exec.Cmd
	if spec.Shell {
		line := spec.Command
		if len(spec.Args) > 0 {
			line += " " + strings.Join(spec.Args, " ")
		}
		if runtime.GOOS == "windows" {
			cmd = exec.Command("cmd", "/C", line) // #nosec G204
		} else {
			cmd = exec.Command("/bin/sh", "-c", line) // #nosec G204
		}
	} else {
		cmd = exec.Command(spec.Command, spec.Args...) // #nosec G204
	}

	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.WaitDelay = PipeDrainDelay

	return cmd, nil
}

// execHandle is a Handle backed by an exec.Cmd.
type execHandle struct {
	cmd     *exec.Cmd
	started time.Time

	done chan struct{}

	mu     sync.RWMutex
	status ExitStatus
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Signal(sig os.Signal) error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	return signalProcess(h.cmd.Process, sig)
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) Status() ExitStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// waitLoop waits for the process to exit and publishes its status.
func (h *execHandle) waitLoop(logger *slog.Logger) {
	err := h.cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		logger.Debug("process_output_truncated",
			"pid", h.cmd.Process.Pid,
			"drain_delay", PipeDrainDelay.String(),
		)
	}
	status := exitStatusFromWait(err)

	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
	close(h.done)

	logger.Debug("process_reaped",
		"pid", h.cmd.Process.Pid,
		"exit_code", status.Code,
		"signal", status.Signal,
		"uptime", time.Since(h.started).String(),
	)
}

// exitStatusFromWait converts a Wait() error into an ExitStatus.
func exitStatusFromWait(err error) ExitStatus {
	// The process exited cleanly but something else still held its output
	// pipes past PipeDrainDelay.
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return ExitStatus{Code: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if sig, ok := terminatingSignal(exitErr.ProcessState); ok {
			return ExitStatus{Code: -1, Signal: sig}
		}
		return ExitStatus{Code: exitErr.ExitCode()}
	}

	return ExitStatus{Code: -1, Err: err}
}
