//go:build unix

package task

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

// These tests run real child processes through the exec spawner.

func TestProcessTask_RealExit(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantKind Kind
	}{
		{"success", "exit 0", KindSuccess},
		{"failure", "exit 7", KindFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewProcessTask("sh", ProcessOptions{
				Command: "/bin/sh",
				Args:    []string{"-c", tt.script},
				Logger:  discardLogger(),
			})
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			got := task.Run(ctx)
			if got.Kind != tt.wantKind {
				t.Errorf("Run() = %v, want %v", got, tt.wantKind)
			}
			if tt.wantKind == KindFailure && !strings.Contains(got.Message, "7") {
				t.Errorf("Message = %q, want it to mention 7", got.Message)
			}
		})
	}
}

func TestProcessTask_RealOutput(t *testing.T) {
	var out bytes.Buffer
	task := NewProcessTask("echo", ProcessOptions{
		Command: "echo",
		Args:    []string{"hello", "world"},
		Stdout:  &out,
		Logger:  discardLogger(),
	})

	if got := task.Run(context.Background()); got.Kind != KindSuccess {
		t.Fatalf("Run() = %v, want success", got)
	}
	if strings.TrimSpace(out.String()) != "hello world" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello world")
	}
}

func TestProcessTask_RealExitWithBackgroundChild(t *testing.T) {
	task := NewProcessTask("sh", ProcessOptions{
		Command: "sleep 3 & echo started; exit 0",
		Shell:   true,
		Stdout:  io.Discard,
		Logger:  discardLogger(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	got := task.Run(ctx)
	if got.Kind != KindSuccess {
		t.Errorf("Run() = %v, want success", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() returned after %v, want it bounded by the drain delay", elapsed)
	}
}

func TestProcessTask_RealMissingBinary(t *testing.T) {
	task := NewProcessTask("missing", ProcessOptions{
		Command: "definitely-not-a-real-binary-xyz",
		Logger:  discardLogger(),
	})
	if got := task.Run(context.Background()); got.Kind != KindException {
		t.Errorf("Run() = %v, want exception", got)
	}
}

func TestProcessTask_RealStopInterrupt(t *testing.T) {
	task := NewProcessTask("sleep", ProcessOptions{
		Command: "sleep",
		Args:    []string{"30"},
		Logger:  discardLogger(),
	})

	ch := runAsync(context.Background(), task)
	waitForState(t, task, StateRunning)

	start := time.Now()
	if err := task.Stop(context.Background(), StopConfig{StopTimeout: 5}); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop() took %v, want sleep to die on SIGINT", elapsed)
	}
	if got := waitOutcome(t, ch, time.Second); got.Kind != KindCancelled {
		t.Errorf("Run() = %v, want cancelled", got)
	}
	if task.State() != StateTerminated {
		t.Errorf("State() = %v, want terminated", task.State())
	}
}

func TestProcessTask_RealStopEscalatesPastIgnoredInterrupt(t *testing.T) {
	task := NewProcessTask("stubborn", ProcessOptions{
		Command: "/bin/sh",
		Args:    []string{"-c", "trap '' INT; sleep 30"},
		Logger:  discardLogger(),
	})

	ch := runAsync(context.Background(), task)
	waitForState(t, task, StateRunning)
	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := task.Stop(context.Background(), StopConfig{StopTimeout: 1}); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 900*time.Millisecond || elapsed > 5*time.Second {
		t.Errorf("Stop() took %v, want about 1s", elapsed)
	}
	if got := waitOutcome(t, ch, time.Second); got.Kind != KindCancelled {
		t.Errorf("Run() = %v, want cancelled", got)
	}
}

func waitForState(t *testing.T, task *ProcessTask, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if task.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", task.State(), want)
}
