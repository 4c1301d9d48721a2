package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/randomizedcoder/go-build-tasks/internal/logging"
	"github.com/randomizedcoder/go-build-tasks/internal/orchestrator"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Something has to run
	if !cfg.HasBuild() && cfg.StartScript == "" && cfg.StartCmd == "" && cfg.EndScript == "" && cfg.EndCmd == "" {
		errs = append(errs, ValidationError{
			Field:   "build_command",
			Message: "a build command (after --) or a start/end task is required",
		})
	}

	// Each hook is either a script or a command
	if cfg.StartScript != "" && cfg.StartCmd != "" {
		errs = append(errs, ValidationError{
			Field:   "start",
			Message: "-start-script and -start-cmd are mutually exclusive",
		})
	}
	if cfg.EndScript != "" && cfg.EndCmd != "" {
		errs = append(errs, ValidationError{
			Field:   "end",
			Message: "-end-script and -end-cmd are mutually exclusive",
		})
	}

	if cfg.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "dir",
			Message: "must not be empty",
		})
	}

	if _, err := orchestrator.ParseLogMode(cfg.Log); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log",
			Message: err.Error(),
		})
	}

	// -1 waits forever
	if cfg.StopTimeout < -1 {
		errs = append(errs, ValidationError{
			Field:   "stop_timeout",
			Message: fmt.Sprintf("must be -1 or greater (got %d)", cfg.StopTimeout),
		})
	}

	if cfg.RebuildInterval < 0 {
		errs = append(errs, ValidationError{
			Field:   "rebuild_interval",
			Message: "must not be negative",
		})
	}

	if !logging.ValidFormat(cfg.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}
	if !logging.ValidLevel(cfg.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	if cfg.MetricsFile != "" && filepath.Base(cfg.MetricsFile) == "." {
		errs = append(errs, ValidationError{
			Field:   "metrics_file",
			Message: "must name a file",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
