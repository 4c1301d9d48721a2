// Package process provides abstractions for running external processes.
package process

import (
	"errors"
	"io"
	"os"
)

// ErrEmptyCommand is returned when a Spec has no command to run.
var ErrEmptyCommand = errors.New("empty command")

// Spec describes a command to spawn.
type Spec struct {
	// Command is the executable name or path. In shell mode it is the
	// command line handed to the shell.
	Command string

	// Args are appended to Command. In shell mode they are joined to the
	// command line with spaces.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env replaces the inherited environment when non-nil.
	Env []string

	// Shell runs the command through /bin/sh -c (cmd /C on Windows).
	Shell bool

	// Stdin, Stdout and Stderr are connected to the child when set.
	// Nil streams are attached to the null device.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitStatus is the exit notification of a process.
type ExitStatus struct {
	// Code is the exit code, or -1 when the process was killed by a signal
	// or never produced an exit code.
	Code int

	// Signal is the name of the terminating signal ("SIGTERM"), or empty
	// when the process exited on its own.
	Signal string

	// Err holds a wait error that is not an exit status (for example an
	// I/O copy failure on a stdio pipe).
	Err error
}

// Signaled reports whether the process was terminated by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != ""
}

// Handle is a started child process.
type Handle interface {
	// PID returns the OS process ID.
	PID() int

	// Signal delivers sig to the process (and its group where supported).
	Signal(sig os.Signal) error

	// Done is closed once the process has exited. Any number of
	// goroutines may wait on it.
	Done() <-chan struct{}

	// Status returns the exit status. Only meaningful after Done is closed.
	Status() ExitStatus
}

// Spawner starts processes. It allows tasks to be tested without real
// child processes.
type Spawner interface {
	Spawn(spec Spec) (Handle, error)
}
