package app

import (
	"context"

	"github.com/randomizedcoder/go-build-tasks/internal/metrics"
	"github.com/randomizedcoder/go-build-tasks/internal/orchestrator"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

var _ metrics.Controller = (*App)(nil)

// Status is the body of GET /v1/status.
type Status struct {
	Busy     bool                      `json:"busy"`
	Watch    bool                      `json:"watch"`
	InFlight int                       `json:"in_flight"`
	Cycles   int                       `json:"cycles"`
	Failed   int                       `json:"failed_cycles"`
	Tasks    []orchestrator.TaskStatus `json:"tasks"`
}

// Status returns a snapshot of the session.
func (a *App) Status() any {
	snap := a.recorder.Snapshot()
	return Status{
		Busy:     a.orch.Busy(),
		Watch:    a.cfg.Watch,
		InFlight: a.orch.InFlight(),
		Cycles:   snap.Cycles,
		Failed:   snap.FailedCycles,
		Tasks:    a.orch.Status(),
	}
}

// Rebuild requests another cycle. Outside watch mode nothing consumes
// requests, so they are refused.
func (a *App) Rebuild() bool {
	if !a.cfg.Watch {
		a.logger.Info("rebuild_ignored", "reason", "not watching")
		return false
	}
	queued := a.trigger.Request()
	a.logger.Info("rebuild_requested", "queued", queued)
	return queued
}

// ForceStop sends the forceful signal to every in-flight task at once,
// including tasks a graceful stop is still waiting on.
func (a *App) ForceStop() {
	a.logger.Warn("force_stop")
	if err := a.orch.StopWith(context.Background(), task.StopConfig{StopTimeout: task.StopImmediately}); err != nil {
		a.logger.Warn("force_stop_incomplete", "error", err)
	}
}

// rebuildHook returns the dashboard's rebuild key handler, or nil outside
// watch mode.
func (a *App) rebuildHook() func() {
	if !a.cfg.Watch {
		return nil
	}
	return func() { a.Rebuild() }
}
