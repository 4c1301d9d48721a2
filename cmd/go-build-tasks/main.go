// Package main provides the go-build-tasks CLI entry point.
//
// go-build-tasks runs a build command between optional start and end tasks
// (package scripts or shell commands), reports their timing, and stops
// in-flight processes in stages on shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-build-tasks/internal/app"
	"github.com/randomizedcoder/go-build-tasks/internal/config"
	"github.com/randomizedcoder/go-build-tasks/internal/logging"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-build-tasks
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 2
	}

	if cfg.ShowVersion {
		fmt.Printf("go-build-tasks %s\n", version)
		return 0
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, logging.FormatJSON, cfg.LogLevel)
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}

	opts := app.Options{
		Version: version,
		Logger:  logger,
	}
	if cfg.TUIEnabled {
		opts.TUIOptions = []tea.ProgramOption{tea.WithAltScreen()}
	}

	a, err := app.New(cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// First interrupt stops gracefully, the next one forces.
	runDone := make(chan struct{})
	defer close(runDone)
	go func() {
		stopping := false
		for {
			select {
			case <-runDone:
				return
			case sig := <-sigCh:
				switch {
				case sig == syscall.SIGHUP:
					logger.Info("received_signal", "signal", sig.String(), "action", "rebuild")
					a.Rebuild()
				case !stopping:
					logger.Info("received_signal", "signal", sig.String(), "action", "stop")
					stopping = true
					cancel()
				default:
					logger.Warn("received_signal", "signal", sig.String(), "action", "force_stop")
					go a.ForceStop()
				}
			}
		}
	}()

	return a.Run(ctx)
}
