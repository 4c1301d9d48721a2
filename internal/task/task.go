// Package task defines the build task abstraction and its implementations:
// external processes, package-manager scripts and callbacks.
//
// Every task resolves to exactly one Outcome per Run. Tasks that own an
// external resource also implement Stoppable, whose Stop performs a staged
// shutdown: a polite interrupt, an optional grace period, then a forceful
// termination.
package task

import (
	"context"
	"os"
	"syscall"
	"time"
)

// Task types reported by Type().
const (
	TypeProcess       = "process"
	TypePackageScript = "package-script"
	TypeCallback      = "callback"
)

// Task is a unit of work producing an Outcome.
type Task interface {
	// Name identifies the task in logs. Names need not be unique.
	Name() string

	// Type is a static classification such as "process".
	Type() string

	// Run performs the work and blocks until it resolves. It never panics;
	// errors are reported through the returned Outcome.
	Run(ctx context.Context) Outcome
}

// Stoppable is a Task that can be cancelled while running.
type Stoppable interface {
	Task

	// Stop cancels an in-flight Run, which then returns Cancelled, and
	// returns once owned resources are released. It is a no-op when
	// nothing is running. ctx bounds only how long Stop waits.
	Stop(ctx context.Context, cfg StopConfig) error
}

// StateReporter is implemented by tasks that expose their lifecycle state.
type StateReporter interface {
	State() State
}

// Stop timeouts with special meaning.
const (
	// WaitForever never escalates to a forceful signal.
	WaitForever = -1

	// StopImmediately skips the polite phase.
	StopImmediately = 0
)

// Signals used for the staged shutdown.
var (
	InterruptSignal os.Signal = syscall.SIGINT
	TerminateSignal os.Signal = syscall.SIGTERM
)

// StopConfig controls the staged shutdown of a Stoppable task.
type StopConfig struct {
	// StopTimeout is the grace period in whole seconds between the polite
	// and the forceful signal. WaitForever (-1) never forces, and
	// StopImmediately (0) forces right away.
	StopTimeout int
}

// DefaultStopConfig returns a config with a 30 second grace period.
func DefaultStopConfig() StopConfig {
	return StopConfig{StopTimeout: 30}
}

// Grace returns the grace period. ok is false when escalation never
// happens.
func (c StopConfig) Grace() (d time.Duration, ok bool) {
	if c.StopTimeout < 0 {
		return 0, false
	}
	return time.Duration(c.StopTimeout) * time.Second, true
}
