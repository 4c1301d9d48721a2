// Package stats accumulates per-task run statistics across build cycles and
// formats the exit summary.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// digestCompression bounds each digest to roughly 100 centroids.
const digestCompression = 100

// taskStats holds the running totals for one task name.
type taskStats struct {
	name  string
	typ   string
	runs  map[task.Kind]int
	last  task.Outcome
	max   time.Duration
	total time.Duration

	digest *tdigest.TDigest
}

// Recorder accumulates task outcomes and durations. It is safe for
// concurrent use.
type Recorder struct {
	mu        sync.Mutex
	startTime time.Time
	tasks     map[string]*taskStats
	order     []string

	cycles       int
	failedCycles int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		startTime: time.Now(),
		tasks:     make(map[string]*taskStats),
	}
}

// Record adds one completed run of a task.
func (r *Recorder) Record(name, typ string, out task.Outcome, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.tasks[name]
	if !ok {
		ts = &taskStats{
			name:   name,
			typ:    typ,
			runs:   make(map[task.Kind]int),
			digest: tdigest.NewWithCompression(digestCompression),
		}
		r.tasks[name] = ts
		r.order = append(r.order, name)
	}

	ts.runs[out.Kind]++
	ts.last = out
	ts.total += d
	if d > ts.max {
		ts.max = d
	}
	ts.digest.Add(float64(d.Nanoseconds()), 1)
}

// RecordCycle counts a finished build cycle.
func (r *Recorder) RecordCycle(failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	if failed {
		r.failedCycles++
	}
}

// TaskSummary is a point-in-time view of one task's statistics.
type TaskSummary struct {
	Name string
	Type string

	Runs       int
	Successes  int
	Failures   int
	Exceptions int
	Cancelled  int

	Last task.Outcome

	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
}

// Snapshot is a point-in-time view of the recorder.
type Snapshot struct {
	Duration     time.Duration
	Cycles       int
	FailedCycles int
	Tasks        []TaskSummary
}

// Snapshot returns the current statistics, tasks in first-seen order.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Duration:     time.Since(r.startTime),
		Cycles:       r.cycles,
		FailedCycles: r.failedCycles,
		Tasks:        make([]TaskSummary, 0, len(r.order)),
	}

	for _, name := range r.order {
		ts := r.tasks[name]
		sum := TaskSummary{
			Name:       ts.name,
			Type:       ts.typ,
			Successes:  ts.runs[task.KindSuccess],
			Failures:   ts.runs[task.KindFailure],
			Exceptions: ts.runs[task.KindException],
			Cancelled:  ts.runs[task.KindCancelled],
			Last:       ts.last,
			Max:        ts.max,
		}
		sum.Runs = sum.Successes + sum.Failures + sum.Exceptions + sum.Cancelled
		if sum.Runs > 0 {
			sum.Mean = ts.total / time.Duration(sum.Runs)
			sum.P50 = time.Duration(ts.digest.Quantile(0.50))
			sum.P95 = time.Duration(ts.digest.Quantile(0.95))
			sum.P99 = time.Duration(ts.digest.Quantile(0.99))
		}
		s.Tasks = append(s.Tasks, sum)
	}

	return s
}
