// Package config provides configuration management for go-build-tasks.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "BUILDTASKS_"

// Config holds all configuration options for a go-build-tasks run.
type Config struct {
	// Tasks
	StartScript  string   `json:"start_script"`
	StartCmd     string   `json:"start_cmd"`
	EndScript    string   `json:"end_script"`
	EndCmd       string   `json:"end_cmd"`
	BuildCommand []string `json:"build_command"`
	BuildName    string   `json:"build_name"`
	Dir          string   `json:"dir"`

	// Lifecycle
	Log             string        `json:"log"` // none, log-tasks, log-all
	StopTimeout     int           `json:"stop_timeout"`
	Watch           bool          `json:"watch"`
	RebuildInterval time.Duration `json:"rebuild_interval"`

	// Observability
	LogFormat     string `json:"log_format"` // json, text
	LogLevel      string `json:"log_level"`
	Verbose       bool   `json:"verbose"`
	CaptureOutput bool   `json:"capture_output"`
	MetricsAddr   string `json:"metrics_addr"`
	MetricsFile   string `json:"metrics_file"`

	// Dashboard
	TUIEnabled bool `json:"tui_enabled"`

	// Diagnostic modes
	SkipPreflight bool `json:"skip_preflight"`
	ShowVersion   bool `json:"show_version"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BuildName: "build",
		Dir:       ".",

		Log:             "log-all",
		StopTimeout:     30,
		RebuildInterval: time.Second,

		LogFormat: "text",
		LogLevel:  "info",
	}
}

// HasBuild reports whether a build command was given.
func (c *Config) HasBuild() bool {
	return len(c.BuildCommand) > 0
}

// Scripts returns the package scripts referenced by the config.
func (c *Config) Scripts() []string {
	var out []string
	for _, s := range []string{c.StartScript, c.EndScript} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads the given .env files into the process environment.
// Variables already set are kept. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// FromEnv overrides cfg fields with BUILDTASKS_* variables. Values that do
// not parse are ignored.
func FromEnv(cfg *Config, lookup LookupFunc) {
	e := envReader{lookup: lookup}

	e.str("START_SCRIPT", &cfg.StartScript)
	e.str("START_CMD", &cfg.StartCmd)
	e.str("END_SCRIPT", &cfg.EndScript)
	e.str("END_CMD", &cfg.EndCmd)
	e.str("BUILD_NAME", &cfg.BuildName)
	e.str("DIR", &cfg.Dir)

	e.str("LOG", &cfg.Log)
	e.int("STOP_TIMEOUT", &cfg.StopTimeout)
	e.bool("WATCH", &cfg.Watch)
	e.duration("REBUILD_INTERVAL", &cfg.RebuildInterval)

	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.bool("VERBOSE", &cfg.Verbose)
	e.bool("CAPTURE_OUTPUT", &cfg.CaptureOutput)
	e.str("METRICS_ADDR", &cfg.MetricsAddr)
	e.str("METRICS_FILE", &cfg.MetricsFile)

	e.bool("TUI", &cfg.TUIEnabled)
	e.bool("SKIP_PREFLIGHT", &cfg.SkipPreflight)
}

type envReader struct {
	lookup LookupFunc
}

func (e envReader) get(key string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}
	return e.lookup(EnvPrefix + key)
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = i
		}
	}
}

func (e envReader) bool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			*dst = true
		case "false", "0", "no":
			*dst = false
		}
	}
}

func (e envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}
