package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/randomizedcoder/go-build-tasks/internal/pkgmanager"
	"github.com/randomizedcoder/go-build-tasks/internal/process"
)

// ScriptOptions configures a PackageScriptTask.
type ScriptOptions struct {
	// Script is the script name as declared in package.json. Required.
	Script string

	// Dir is the project directory used for detection and as the working
	// directory of the package manager.
	Dir string
	Env []string

	Stdout io.Writer
	Stderr io.Writer

	// Stop is applied when the context passed to Run is cancelled.
	Stop StopConfig

	OnSignal func(sig os.Signal, escalated bool)

	// Detector defaults to pkgmanager.NewProjectDetector().
	Detector pkgmanager.Detector
	Spawner  process.Spawner
	Logger   *slog.Logger
}

// PackageScriptTask runs "<manager> run <script>" with the package manager
// detected for the project.
type PackageScriptTask struct {
	name     string
	opts     ScriptOptions
	detector pkgmanager.Detector
	logger   *slog.Logger

	mu            sync.Mutex
	delegate      *ProcessTask
	inFlight      bool
	stopRequested bool
	cancelDetect  context.CancelFunc
}

// NewPackageScriptTask creates a package script task.
func NewPackageScriptTask(name string, opts ScriptOptions) *PackageScriptTask {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detector := opts.Detector
	if detector == nil {
		detector = pkgmanager.NewProjectDetector()
	}
	return &PackageScriptTask{
		name:     name,
		opts:     opts,
		detector: detector,
		logger:   logger,
	}
}

// Name returns the task name.
func (t *PackageScriptTask) Name() string {
	return t.name
}

// Type returns TypePackageScript.
func (t *PackageScriptTask) Type() string {
	return TypePackageScript
}

// Script returns the configured script name.
func (t *PackageScriptTask) Script() string {
	return t.opts.Script
}

// Run detects the package manager and runs the script through a fresh
// ProcessTask. A detection error is reported as Exception.
func (t *PackageScriptTask) Run(ctx context.Context) Outcome {
	detectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	t.inFlight = true
	t.stopRequested = false
	t.cancelDetect = cancel
	t.delegate = nil
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight = false
		t.cancelDetect = nil
		t.mu.Unlock()
	}()

	manager, err := t.detector.Detect(detectCtx, t.opts.Dir)
	if err != nil {
		t.mu.Lock()
		stopped := t.stopRequested
		t.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return Cancelled()
		}
		t.logger.Error("package_manager_detection_failed",
			"task", t.name,
			"dir", t.opts.Dir,
			"error", err,
		)
		return Exception(fmt.Errorf("detect package manager: %w", err))
	}

	t.logger.Debug("package_manager_detected",
		"task", t.name,
		"manager", string(manager),
		"script", t.opts.Script,
	)

	// Launch under t.mu so Stop either sees the stop request flag or a
	// delegate that already owns its process.
	t.mu.Lock()
	if t.stopRequested {
		t.mu.Unlock()
		return Cancelled()
	}
	d := NewProcessTask(t.name, ProcessOptions{
		Command:  string(manager),
		Args:     []string{"run", t.opts.Script},
		Dir:      t.opts.Dir,
		Env:      t.opts.Env,
		Stdout:   t.opts.Stdout,
		Stderr:   t.opts.Stderr,
		Stop:     t.opts.Stop,
		OnSignal: t.opts.OnSignal,
		Spawner:  t.opts.Spawner,
		Logger:   t.logger,
	})
	t.delegate = d
	result, ok := d.launch()
	t.mu.Unlock()

	if !ok {
		return <-result
	}
	return d.await(ctx, result)
}

// Stop forwards to the delegate process task and drops it, so a later Run
// starts from a fresh delegate. A Stop during detection cancels the run
// before any process is spawned.
func (t *PackageScriptTask) Stop(ctx context.Context, cfg StopConfig) error {
	t.mu.Lock()
	d := t.delegate
	if d == nil && t.inFlight {
		t.stopRequested = true
		if t.cancelDetect != nil {
			t.cancelDetect()
		}
	}
	t.mu.Unlock()

	if d == nil {
		return nil
	}

	err := d.Stop(ctx, cfg)

	t.mu.Lock()
	if t.delegate == d {
		t.delegate = nil
	}
	t.mu.Unlock()

	return err
}
