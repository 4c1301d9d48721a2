package task

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/randomizedcoder/go-build-tasks/internal/pkgmanager"
	"github.com/randomizedcoder/go-build-tasks/internal/process"
)

// =============================================================================
// Fake process.Handle
// =============================================================================

// fakeHandle is a controllable process.Handle.
type fakeHandle struct {
	pid  int
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	status  process.ExitStatus
	signals []os.Signal

	// onSignal decides how the fake process reacts to a signal.
	onSignal func(h *fakeHandle, sig os.Signal)
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Signal(sig os.Signal) error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	react := h.onSignal
	h.mu.Unlock()
	if react != nil {
		react(h, sig)
	}
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Status() process.ExitStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// exit simulates the process exiting with status.
func (h *fakeHandle) exit(status process.ExitStatus) {
	h.once.Do(func() {
		h.mu.Lock()
		h.status = status
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *fakeHandle) Signals() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]os.Signal, len(h.signals))
	copy(out, h.signals)
	return out
}

// exitOn returns a reaction that terminates the process on sig.
func exitOn(sig os.Signal) func(h *fakeHandle, s os.Signal) {
	return func(h *fakeHandle, s os.Signal) {
		if s == sig {
			go h.exit(process.ExitStatus{Code: -1, Signal: process.SignalName(s)})
		}
	}
}

// exitCleanlyOn returns a reaction where the process handles sig and exits 0.
func exitCleanlyOn(sig os.Signal) func(h *fakeHandle, s os.Signal) {
	return func(h *fakeHandle, s os.Signal) {
		if s == sig {
			go h.exit(process.ExitStatus{Code: 0})
		}
	}
}

// =============================================================================
// Fake process.Spawner
// =============================================================================

type fakeSpawner struct {
	mu      sync.Mutex
	specs   []process.Spec
	handles []*fakeHandle
	err     error

	// configure is applied to each new handle.
	configure func(h *fakeHandle)
}

func (s *fakeSpawner) Spawn(spec process.Spec) (process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	if s.err != nil {
		return nil, s.err
	}
	h := newFakeHandle(1000 + len(s.handles))
	if s.configure != nil {
		s.configure(h)
	}
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *fakeSpawner) Specs() []process.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]process.Spec(nil), s.specs...)
}

// handle waits for the i-th spawned handle.
func (s *fakeSpawner) handle(t *testing.T, i int) *fakeHandle {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.handles) > i {
			h := s.handles[i]
			s.mu.Unlock()
			return h
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("handle %d was never spawned", i)
	return nil
}

// =============================================================================
// Fake pkgmanager.Detector
// =============================================================================

type fakeDetector struct {
	manager pkgmanager.Manager
	err     error

	// block makes Detect wait for its context.
	block bool

	mu   sync.Mutex
	dirs []string
}

func (d *fakeDetector) Detect(ctx context.Context, dir string) (pkgmanager.Manager, error) {
	d.mu.Lock()
	d.dirs = append(d.dirs, dir)
	d.mu.Unlock()
	if d.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return d.manager, d.err
}

// =============================================================================
// Helpers
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runAsync runs task in a goroutine and returns the outcome channel.
func runAsync(ctx context.Context, task Task) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		ch <- task.Run(ctx)
	}()
	return ch
}

// waitOutcome waits for an outcome or fails the test.
func waitOutcome(t *testing.T, ch <-chan Outcome, timeout time.Duration) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(timeout):
		t.Fatalf("Run did not resolve within %v", timeout)
		return Outcome{}
	}
}

func sameSignals(got []os.Signal, want ...os.Signal) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

var (
	sigint  os.Signal = syscall.SIGINT
	sigterm os.Signal = syscall.SIGTERM
)
