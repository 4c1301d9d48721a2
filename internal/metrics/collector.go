// Package metrics provides Prometheus metrics for go-build-tasks.
//
// All metrics live on the registry passed to NewCollectorWithRegistry so a
// process (or a test) can hold several independent collectors.
package metrics

import (
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-build-tasks/internal/process"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// Namespace prefixes every metric name.
const Namespace = "build_tasks"

// Cycle results used for the cycles_total label.
const (
	CycleSucceeded = "succeeded"
	CycleFailed    = "failed"
	CycleCancelled = "cancelled"
)

// Collector records task runs, stop escalation and build cycles.
type Collector struct {
	info            *prometheus.GaugeVec
	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	tasksRunning    prometheus.Gauge
	taskSignals     *prometheus.CounterVec
	stopEscalations *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	lastCycle       prometheus.Gauge

	mu          sync.Mutex
	running     int
	peakRunning int
	runs        map[task.Kind]int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Dir     string
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "info",
				Help:      "Information about the running binary (value always 1)",
			},
			[]string{"version", "dir"},
		),
		taskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "task_runs_total",
				Help:      "Completed task runs by outcome",
			},
			[]string{"task", "type", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "task_duration_seconds",
				Help:      "Wall time from task start to outcome",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"task", "type"},
		),
		tasksRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "tasks_running",
				Help:      "Tasks currently in flight",
			},
		),
		taskSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "task_signals_total",
				Help:      "Signals delivered to task processes",
			},
			[]string{"task", "signal"},
		),
		stopEscalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stop_escalations_total",
				Help:      "Stops that outlived the grace period and were forced",
			},
			[]string{"task"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cycles_total",
				Help:      "Build cycles by result",
			},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of a full build cycle",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time the last build cycle finished",
			},
		),
		runs: make(map[task.Kind]int64),
	}

	registry.MustRegister(
		c.info,
		c.taskRuns,
		c.taskDuration,
		c.tasksRunning,
		c.taskSignals,
		c.stopEscalations,
		c.cycles,
		c.cycleDuration,
		c.lastCycle,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Dir).Set(1)

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// TaskStarted records a task entering Run.
func (c *Collector) TaskStarted() {
	c.tasksRunning.Inc()

	c.mu.Lock()
	c.running++
	if c.running > c.peakRunning {
		c.peakRunning = c.running
	}
	c.mu.Unlock()
}

// TaskFinished records the outcome of a task run.
func (c *Collector) TaskFinished(name, typ string, out task.Outcome, d time.Duration) {
	c.tasksRunning.Dec()
	c.taskRuns.WithLabelValues(name, typ, out.Kind.String()).Inc()
	c.taskDuration.WithLabelValues(name, typ).Observe(d.Seconds())

	c.mu.Lock()
	if c.running > 0 {
		c.running--
	}
	c.runs[out.Kind]++
	c.mu.Unlock()
}

// RecordSignal records a signal delivered to a task's process.
func (c *Collector) RecordSignal(name string, sig os.Signal, escalated bool) {
	c.taskSignals.WithLabelValues(name, process.SignalName(sig)).Inc()
	if escalated {
		c.stopEscalations.WithLabelValues(name).Inc()
	}
}

// CycleFinished records the end of a build cycle.
func (c *Collector) CycleFinished(result string, d time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(d.Seconds())
	c.lastCycle.Set(float64(time.Now().Unix()))
}

// =============================================================================
// Accessors
// =============================================================================

// PeakRunning returns the highest number of tasks seen in flight at once.
func (c *Collector) PeakRunning() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakRunning
}

// Runs returns the number of completed task runs with the given outcome kind.
func (c *Collector) Runs(kind task.Kind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[kind]
}
