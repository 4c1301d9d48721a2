package orchestrator

import (
	"time"

	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// TaskStatus describes the latest known state of a task by name.
type TaskStatus struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	Runs      int       `json:"runs"`

	LastOutcome  string `json:"last_outcome,omitempty"`
	LastDuration string `json:"last_duration,omitempty"`
}

func (o *Orchestrator) track(rt *runningTask) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.inFlight[rt] = struct{}{}

	name := rt.task.Name()
	st, ok := o.status[name]
	if !ok {
		st = &TaskStatus{Name: name, Type: rt.task.Type()}
		o.status[name] = st
		o.order = append(o.order, name)
	}
	st.Running = true
	st.StartedAt = rt.start
}

func (o *Orchestrator) untrack(rt *runningTask, out task.Outcome, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inFlight, rt)

	if st, ok := o.status[rt.task.Name()]; ok {
		st.Running = false
		st.Runs++
		st.LastOutcome = out.String()
		st.LastDuration = d.Round(time.Millisecond).String()
	}
}

// Status returns every task seen so far, in first-run order.
func (o *Orchestrator) Status() []TaskStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]TaskStatus, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, *o.status[name])
	}
	return out
}
