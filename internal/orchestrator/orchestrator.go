// Package orchestrator runs a build task between optional build-start and
// build-end tasks, reports their progress to a Sink and stops whatever is
// in flight on request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// DefaultBuildName labels the build itself in sink events.
const DefaultBuildName = "build"

// Sink receives task progress events.
type Sink interface {
	Started(name string)
	Finished(name string, d time.Duration)
	Failed(name string, d time.Duration, out task.Outcome)
}

// CancelSink is implemented by sinks that also want to hear about
// cancelled runs. Plain sinks see nothing for a cancellation.
type CancelSink interface {
	Sink
	Cancelled(name string, d time.Duration)
}

// Callbacks contains optional hooks for metrics and statistics.
type Callbacks struct {
	// OnTaskStart is called as a task enters Run.
	OnTaskStart func(name, typ string)

	// OnTaskDone is called with the outcome of every task run.
	OnTaskDone func(name, typ string, out task.Outcome, d time.Duration)

	// OnCycleDone is called once per RunCycle.
	OnCycleDone func(result CycleResult)
}

// Config holds configuration for the Orchestrator.
type Config struct {
	// BuildStart runs before the build. Optional.
	BuildStart task.Task

	// BuildEnd runs after the build, whatever its outcome. Optional.
	BuildEnd task.Task

	// Log selects which events reach the Sink. Defaults to LogAll.
	Log LogMode

	// Stop is passed to every in-flight task by Stop. Nil means
	// task.DefaultStopConfig.
	Stop *task.StopConfig

	// BuildName labels the build in sink events. Defaults to "build".
	BuildName string

	Sink      Sink
	Logger    *slog.Logger
	Callbacks Callbacks
}

// Orchestrator coordinates build cycles.
type Orchestrator struct {
	buildStart task.Task
	buildEnd   task.Task
	log        LogMode
	stop       task.StopConfig
	buildName  string
	sink       Sink
	logger     *slog.Logger
	callbacks  Callbacks

	// One cycle at a time
	cycleMu sync.Mutex
	busy    atomic.Bool

	mu       sync.Mutex
	inFlight map[*runningTask]struct{}
	status   map[string]*TaskStatus
	order    []string
}

// runningTask tracks one invocation of a task.
type runningTask struct {
	task  task.Task
	start time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg Config) *Orchestrator {
	stop := task.DefaultStopConfig()
	if cfg.Stop != nil {
		stop = *cfg.Stop
	}
	mode := cfg.Log
	if mode == "" {
		mode = LogAll
	}
	name := cfg.BuildName
	if name == "" {
		name = DefaultBuildName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}

	return &Orchestrator{
		buildStart: cfg.BuildStart,
		buildEnd:   cfg.BuildEnd,
		log:        mode,
		stop:       stop,
		buildName:  name,
		sink:       sink,
		logger:     logger,
		callbacks:  cfg.Callbacks,
		inFlight:   make(map[*runningTask]struct{}),
		status:     make(map[string]*TaskStatus),
	}
}

// CycleResult reports the outcomes of one build cycle. A zero Outcome means
// the task was not configured or was skipped.
type CycleResult struct {
	ID         string
	BuildStart task.Outcome
	Build      task.Outcome
	BuildEnd   task.Outcome
	Duration   time.Duration
}

// Failed reports whether any task in the cycle failed.
func (r CycleResult) Failed() bool {
	return r.BuildStart.Failed() || r.Build.Failed() || r.BuildEnd.Failed()
}

// Cancelled reports whether the build was cancelled or skipped.
func (r CycleResult) Cancelled() bool {
	return r.Build.Kind == task.KindCancelled
}

// RunCycle runs build-start, build and build-end in sequence. A nil build
// counts as an instant success. Once ctx is done no further task is started
// and the build is reported as cancelled. Cycles are serialised.
func (o *Orchestrator) RunCycle(ctx context.Context, build task.Task) CycleResult {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()
	o.busy.Store(true)
	defer o.busy.Store(false)

	result := CycleResult{ID: uuid.NewString()}
	logger := o.logger.With("cycle_id", result.ID)
	cycleStart := time.Now()

	logger.Info("cycle_started", "build", o.buildName, "log", string(o.log))

	if o.log.logsBuild() {
		o.sink.Started(o.buildName)
	}

	if o.buildStart != nil && ctx.Err() == nil {
		result.BuildStart = o.runTask(ctx, logger, o.buildStart, o.log.logsTasks())
	}

	switch {
	case ctx.Err() != nil:
		result.Build = task.Cancelled()
	case build != nil:
		result.Build = o.runTask(ctx, logger, build, false)
	default:
		result.Build = task.Success()
	}

	if o.log.logsBuild() {
		o.report(o.buildName, time.Since(cycleStart), result.Build)
	}

	if o.buildEnd != nil && ctx.Err() == nil {
		result.BuildEnd = o.runTask(ctx, logger, o.buildEnd, o.log.logsTasks())
	}

	result.Duration = time.Since(cycleStart)
	logger.Info("cycle_finished",
		"build", result.Build.Kind.String(),
		"failed", result.Failed(),
		"duration", result.Duration.String(),
	)

	if o.callbacks.OnCycleDone != nil {
		o.callbacks.OnCycleDone(result)
	}
	return result
}

// runTask runs one task, timing it locally to this invocation.
func (o *Orchestrator) runTask(ctx context.Context, logger *slog.Logger, t task.Task, logged bool) task.Outcome {
	rt := &runningTask{task: t, start: time.Now()}
	o.track(rt)

	logger = logger.With("task", t.Name(), "type", t.Type())
	logger.Debug("task_started")
	if logged {
		o.sink.Started(t.Name())
	}
	if o.callbacks.OnTaskStart != nil {
		o.callbacks.OnTaskStart(t.Name(), t.Type())
	}

	out := t.Run(ctx)
	d := time.Since(rt.start)
	o.untrack(rt, out, d)

	switch out.Kind {
	case task.KindSuccess:
		logger.Debug("task_finished", "duration", d.String())
	case task.KindCancelled:
		logger.Info("task_cancelled", "duration", d.String())
	default:
		logger.Warn("task_failed", "outcome", out.String(), "duration", d.String())
	}

	if logged {
		o.report(t.Name(), d, out)
	}
	if o.callbacks.OnTaskDone != nil {
		o.callbacks.OnTaskDone(t.Name(), t.Type(), out, d)
	}
	return out
}

// report sends the completion event matching out to the sink.
func (o *Orchestrator) report(name string, d time.Duration, out task.Outcome) {
	switch out.Kind {
	case task.KindSuccess:
		o.sink.Finished(name, d)
	case task.KindFailure, task.KindException:
		o.sink.Failed(name, d, out)
	case task.KindCancelled:
		if cs, ok := o.sink.(CancelSink); ok {
			cs.Cancelled(name, d)
		}
	}
}

// Stop stops every in-flight stoppable task with the configured StopConfig
// and waits for all of them. Tasks that cannot be stopped are left to
// observe their context.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.StopWith(ctx, o.stop)
}

// StopWith is Stop with an explicit StopConfig, such as StopImmediately to
// force tasks an earlier Stop is still waiting on.
func (o *Orchestrator) StopWith(ctx context.Context, cfg task.StopConfig) error {
	o.mu.Lock()
	targets := make([]task.Stoppable, 0, len(o.inFlight))
	for rt := range o.inFlight {
		s, ok := rt.task.(task.Stoppable)
		if !ok {
			continue
		}
		// Already gone; its Run is about to return on its own.
		if sr, ok := rt.task.(task.StateReporter); ok && sr.State().IsTerminal() {
			continue
		}
		targets = append(targets, s)
	}
	o.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	o.logger.Info("stopping_tasks", "count", len(targets), "stop_timeout", cfg.StopTimeout)

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(targets))
	)
	for i, s := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Stop(ctx, cfg); err != nil {
				errs[i] = fmt.Errorf("stop %s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Busy reports whether a cycle is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// InFlight returns the number of tasks currently running.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inFlight)
}

type nopSink struct{}

func (nopSink) Started(string) {}

func (nopSink) Finished(string, time.Duration) {}

func (nopSink) Failed(string, time.Duration, task.Outcome) {}
