package orchestrator

import "fmt"

// LogMode selects which progress events reach the Sink.
type LogMode string

const (
	// LogNone silences all sink events.
	LogNone LogMode = "none"

	// LogTasks reports build-start and build-end tasks only.
	LogTasks LogMode = "log-tasks"

	// LogAll also reports the timing of the build itself.
	LogAll LogMode = "log-all"
)

// ParseLogMode validates a log mode name.
func ParseLogMode(s string) (LogMode, error) {
	switch m := LogMode(s); m {
	case LogNone, LogTasks, LogAll:
		return m, nil
	}
	return "", fmt.Errorf("unknown log mode %q (want none, log-tasks or log-all)", s)
}

func (m LogMode) logsTasks() bool {
	return m == LogTasks || m == LogAll
}

func (m LogMode) logsBuild() bool {
	return m == LogAll
}
