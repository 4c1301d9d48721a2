package task

// State represents the lifecycle state of a process task.
type State int

const (
	// StateIdle is the initial state before Run.
	StateIdle State = iota

	// StateStarting indicates the process is being spawned.
	StateStarting

	// StateRunning indicates the process is running.
	StateRunning

	// StateExited indicates the process exited on its own.
	StateExited

	// StateStopping indicates Stop is shutting the process down.
	StateStopping

	// StateTerminated indicates the process exited after Stop.
	StateTerminated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the process is gone.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateTerminated
}
