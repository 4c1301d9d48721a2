// Package app wires configuration, tasks, the orchestrator and the
// observability stack into one runnable build session.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-build-tasks/internal/config"
	"github.com/randomizedcoder/go-build-tasks/internal/console"
	"github.com/randomizedcoder/go-build-tasks/internal/metrics"
	"github.com/randomizedcoder/go-build-tasks/internal/orchestrator"
	"github.com/randomizedcoder/go-build-tasks/internal/preflight"
	"github.com/randomizedcoder/go-build-tasks/internal/process"
	"github.com/randomizedcoder/go-build-tasks/internal/stats"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
	"github.com/randomizedcoder/go-build-tasks/internal/tui"
)

// Exit codes returned by Run.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitInterrupted = 130
)

// failureOutputLines is how much captured output is replayed for a failed
// task at exit.
const failureOutputLines = 20

// Options holds the process-level dependencies of an App.
type Options struct {
	Version string
	Logger  *slog.Logger

	// Stdout receives progress lines and the exit summary.
	Stdout io.Writer

	// Stderr receives preflight results.
	Stderr io.Writer

	// ChildStdout and ChildStderr receive task output when it is not
	// captured. Default to os.Stdout and os.Stderr.
	ChildStdout io.Writer
	ChildStderr io.Writer

	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry

	// TUIOptions are passed to tea.NewProgram when the dashboard is on.
	TUIOptions []tea.ProgramOption

	// Spawner starts task processes. Defaults to process.ExecSpawner.
	Spawner process.Spawner
}

// App is one build session.
type App struct {
	cfg    *config.Config
	dir    string
	logger *slog.Logger

	stdout      io.Writer
	stderr      io.Writer
	childStdout io.Writer
	childStderr io.Writer
	tuiOptions  []tea.ProgramOption
	spawner     process.Spawner

	registry  *prometheus.Registry
	collector *metrics.Collector
	recorder  *stats.Recorder
	printer   *console.Printer
	trigger   *orchestrator.Trigger
	orch      *orchestrator.Orchestrator
	server    *metrics.Server
	program   *tea.Program

	build   task.Task
	outputs []capturedOutput
}

// New builds an App from a validated config.
func New(cfg *config.Config, opts Options) (*App, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir %s: %w", cfg.Dir, err)
	}

	a := &App{
		cfg:         cfg,
		dir:         dir,
		logger:      opts.Logger,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		childStdout: opts.ChildStdout,
		childStderr: opts.ChildStderr,
		tuiOptions:  opts.TUIOptions,
		spawner:     opts.Spawner,
		registry:    opts.Registry,
		recorder:    stats.NewRecorder(),
		trigger:     orchestrator.NewTrigger(cfg.RebuildInterval),
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	if a.childStdout == nil {
		a.childStdout = os.Stdout
	}
	if a.childStderr == nil {
		a.childStderr = os.Stderr
	}
	if a.spawner == nil {
		a.spawner = process.NewExecSpawner(a.logger)
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	a.collector = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version: opts.Version,
		Dir:     dir,
	}, a.registry)
	a.printer = console.New(a.stdout)

	var sink orchestrator.Sink = a.printer
	if cfg.TUIEnabled {
		a.program = tea.NewProgram(tui.New(tui.Config{
			MetricsAddr: cfg.MetricsAddr,
			OnRebuild:   a.rebuildHook(),
		}), a.tuiOptions...)
		sink = tui.NewProgramSink(a.program)
	}

	logMode, err := orchestrator.ParseLogMode(cfg.Log)
	if err != nil {
		return nil, err
	}

	stop := task.StopConfig{StopTimeout: cfg.StopTimeout}
	if stop.StopTimeout < task.WaitForever {
		stop.StopTimeout = task.WaitForever
	}

	tasks := a.buildTasks(stop)
	a.build = tasks.build

	a.orch = orchestrator.New(orchestrator.Config{
		BuildStart: tasks.start,
		BuildEnd:   tasks.end,
		Log:        logMode,
		Stop:       &stop,
		BuildName:  cfg.BuildName,
		Sink:       sink,
		Logger:     a.logger,
		Callbacks: orchestrator.Callbacks{
			OnTaskStart: a.onTaskStart,
			OnTaskDone:  a.onTaskDone,
			OnCycleDone: a.onCycleDone,
		},
	})

	return a, nil
}

// Run executes the session until the build cycles are done, or until ctx
// is cancelled in watch mode. It returns the process exit code.
func (a *App) Run(ctx context.Context) int {
	if !a.cfg.SkipPreflight {
		result := preflight.RunAll(ctx, a.preflightOptions())
		if !result.Passed || a.cfg.Verbose {
			preflight.PrintResults(a.stderr, result)
		}
		if !result.Passed {
			fmt.Fprintln(a.stderr, "preflight checks failed (use -skip-preflight to override)")
			return ExitFailed
		}
	}

	if a.cfg.MetricsAddr != "" {
		a.server = metrics.NewServer(a.cfg.MetricsAddr, a.registry, a, a.logger)
		if err := a.server.Start(); err != nil {
			a.logger.Error("metrics_server_failed", "error", err)
			fmt.Fprintf(a.stderr, "metrics server: %v\n", err)
			return ExitFailed
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("metrics_server_shutdown_error", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cancellation already stops each running process; this also reaches
	// tasks still detecting their package manager.
	stopTasks := context.AfterFunc(runCtx, func() {
		if err := a.orch.Stop(context.Background()); err != nil {
			a.logger.Warn("stop_incomplete", "error", err)
		}
	})
	defer stopTasks()

	var tuiDone chan struct{}
	if a.program != nil {
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := a.program.Run(); err != nil {
				a.logger.Error("tui_failed", "error", err)
			}
			// Leaving the dashboard ends the session.
			cancel()
		}()
	}

	a.logger.Info("session_starting",
		"dir", a.dir,
		"build", a.cfg.BuildCommand,
		"watch", a.cfg.Watch,
		"log", a.cfg.Log,
		"stop_timeout", a.cfg.StopTimeout,
	)

	a.loop(runCtx)

	if a.program != nil {
		tui.SendQuit(a.program)
		<-tuiDone
	}

	a.finish()

	switch {
	case ctx.Err() != nil:
		return ExitInterrupted
	case a.recorder.Snapshot().FailedCycles > 0:
		return ExitFailed
	default:
		return ExitOK
	}
}

// loop runs the first cycle and, in watch mode, one more per rebuild
// request until ctx is done.
func (a *App) loop(ctx context.Context) {
	a.trigger.MarkStarted()
	a.orch.RunCycle(ctx, a.build)

	if !a.cfg.Watch {
		return
	}

	a.logger.Info("watching", "rebuild_interval", a.trigger.MinInterval().String())
	for a.trigger.Next(ctx) == nil {
		a.orch.RunCycle(ctx, a.build)
	}
	a.logger.Info("watch_stopped",
		"requests", a.trigger.Requests(),
		"coalesced", a.trigger.Coalesced(),
	)
}

// finish writes the metrics file, prints the summary and replays captured
// output of failed tasks.
func (a *App) finish() {
	a.flushOutputs("")

	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextFile(a.cfg.MetricsFile, a.registry); err != nil {
			a.logger.Error("metrics_file_failed", "path", a.cfg.MetricsFile, "error", err)
		} else {
			a.logger.Info("metrics_file_written", "path", a.cfg.MetricsFile)
		}
	}

	snap := a.recorder.Snapshot()

	for _, ts := range snap.Tasks {
		if !ts.Last.Failed() {
			continue
		}
		for _, out := range a.outputs {
			if out.name == ts.Name {
				a.printer.Output(ts.Name, out.recent(failureOutputLines))
			}
		}
	}

	if a.cfg.Watch || a.cfg.TUIEnabled || a.cfg.Verbose {
		metricsAddr := ""
		if a.server != nil {
			metricsAddr = a.server.Addr()
		}
		fmt.Fprint(a.stdout, stats.FormatExitSummary(snap, stats.SummaryConfig{
			MetricsAddr:  metricsAddr,
			MetricsFile:  a.cfg.MetricsFile,
			PeakRunning:  a.collector.PeakRunning(),
			OutputErrors: a.outputErrors(),
		}))
	}
}

// =============================================================================
// Orchestrator callbacks
// =============================================================================

func (a *App) onTaskStart(name, typ string) {
	a.collector.TaskStarted()
}

func (a *App) onTaskDone(name, typ string, out task.Outcome, d time.Duration) {
	a.flushOutputs(name)
	a.collector.TaskFinished(name, typ, out, d)
	a.recorder.Record(name, typ, out, d)
}

func (a *App) onCycleDone(r orchestrator.CycleResult) {
	label := metrics.CycleSucceeded
	switch {
	case r.Failed():
		label = metrics.CycleFailed
	case r.Cancelled():
		label = metrics.CycleCancelled
	}
	a.collector.CycleFinished(label, r.Duration)
	a.recorder.RecordCycle(r.Failed())

	if a.program != nil {
		tui.SendCycle(a.program, r)
	}
}

// =============================================================================
// Preflight
// =============================================================================

func (a *App) preflightOptions() preflight.Options {
	opts := preflight.Options{
		Dir:     a.dir,
		Scripts: a.cfg.Scripts(),
	}
	if a.cfg.HasBuild() {
		opts.Binaries = append(opts.Binaries, a.cfg.BuildCommand[0])
	}
	if a.cfg.StartCmd != "" || a.cfg.EndCmd != "" {
		opts.Binaries = append(opts.Binaries, shellBinary())
	}
	return opts
}
