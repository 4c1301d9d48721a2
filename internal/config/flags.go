package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFlags loads .env, applies BUILDTASKS_* variables and parses the
// command line, in increasing order of precedence.
func ParseFlags() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := DefaultConfig()
	FromEnv(cfg, os.LookupEnv)
	return ParseArgs(cfg, os.Args[1:], os.Stderr)
}

// ParseArgs parses args over cfg. Flag defaults are the values already in
// cfg, so flags override whatever the environment set. Arguments after the
// flags (conventionally after "--") form the build command. Returns
// flag.ErrHelp when -h is given.
func ParseArgs(cfg *Config, args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("go-build-tasks", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printUsage(fs, output) }

	// Tasks
	fs.StringVar(&cfg.StartScript, "start-script", cfg.StartScript, "Package script to run before each build")
	fs.StringVar(&cfg.StartCmd, "start-cmd", cfg.StartCmd, "Shell command to run before each build")
	fs.StringVar(&cfg.EndScript, "end-script", cfg.EndScript, "Package script to run after each build")
	fs.StringVar(&cfg.EndCmd, "end-cmd", cfg.EndCmd, "Shell command to run after each build")
	fs.StringVar(&cfg.BuildName, "build-name", cfg.BuildName, "Label for the build in progress output")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Project directory (package.json location)")

	// Lifecycle
	fs.StringVar(&cfg.Log, "log", cfg.Log, `Progress output: "none", "log-tasks" or "log-all"`)
	fs.IntVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Seconds between SIGINT and SIGTERM when stopping (-1 = never force, 0 = force immediately)")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Keep running and rebuild on SIGHUP or POST /v1/rebuild")
	fs.DurationVar(&cfg.RebuildInterval, "rebuild-interval", cfg.RebuildInterval, "Minimum time between rebuilds in watch mode")

	// Observability
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error"`)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.BoolVar(&cfg.CaptureOutput, "capture-output", cfg.CaptureOutput, "Log task output line by line instead of passing it through")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics and control address (empty disables)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write metrics in text format to this file on exit")

	// Dashboard
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Diagnostics
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.BuildCommand = fs.Args()
	return cfg, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `go-build-tasks - run a build between start and end tasks

Usage:
  go-build-tasks [flags] -- <build command...>

Tasks:
`)
	printFlagCategory(fs, w, []string{"start-script", "start-cmd", "end-script", "end-cmd", "build-name", "dir"})

	fmt.Fprintf(w, "\nLifecycle:\n")
	printFlagCategory(fs, w, []string{"log", "stop-timeout", "watch", "rebuild-interval"})

	fmt.Fprintf(w, "\nObservability:\n")
	printFlagCategory(fs, w, []string{"log-format", "log-level", "v", "capture-output", "metrics", "metrics-file"})

	fmt.Fprintf(w, "\nDashboard:\n")
	printFlagCategory(fs, w, []string{"tui"})

	fmt.Fprintf(w, "\nDiagnostics:\n")
	printFlagCategory(fs, w, []string{"skip-preflight", "version"})

	fmt.Fprintf(w, `
Environment:
  Every flag can also be set as %s<FLAG> (dashes become underscores,
  -metrics is %sMETRICS_ADDR, -v is %sVERBOSE). A .env file in the
  working directory is loaded first. Flags win over both.

Examples:
  # Lint before and test after an esbuild build
  go-build-tasks -start-script lint -end-script test -- esbuild src/index.ts --bundle --outdir=dist

  # Watch mode with metrics, rebuilding on SIGHUP
  go-build-tasks -watch -metrics 127.0.0.1:17092 -end-cmd 'cp -r static dist/' -- make build

`, EnvPrefix, EnvPrefix, EnvPrefix)
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
