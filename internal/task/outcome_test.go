package task

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOutcomeConstructors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		outcome    Outcome
		wantKind   Kind
		wantFailed bool
	}{
		{"success", Success(), KindSuccess, false},
		{"failure", Failure("exit 1"), KindFailure, true},
		{"exception", Exception(boom), KindException, true},
		{"cancelled", Cancelled(), KindCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.outcome.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", tt.outcome.Kind, tt.wantKind)
			}
			if tt.outcome.Failed() != tt.wantFailed {
				t.Errorf("Failed() = %v, want %v", tt.outcome.Failed(), tt.wantFailed)
			}
			if tt.outcome.IsZero() {
				t.Error("IsZero() = true for constructed outcome")
			}
			if tt.outcome.Kind.String() != tt.name {
				t.Errorf("Kind.String() = %q, want %q", tt.outcome.Kind.String(), tt.name)
			}
		})
	}
}

func TestOutcomeFields(t *testing.T) {
	boom := errors.New("boom")

	f := Failure("process exited with code 2")
	if f.Message != "process exited with code 2" || f.Err != nil {
		t.Errorf("Failure fields = %#v", f)
	}

	e := Exception(boom)
	if e.Err != boom || e.Message != "" {
		t.Errorf("Exception fields = %#v", e)
	}

	for _, o := range []Outcome{Success(), Cancelled()} {
		if o.Message != "" || o.Err != nil {
			t.Errorf("%v carries payload: %#v", o.Kind, o)
		}
	}
}

func TestFailure_EmptyMessage(t *testing.T) {
	if got := Failure(""); got.Message == "" {
		t.Error("Failure(\"\") has an empty message")
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{Success(), "success"},
		{Cancelled(), "cancelled"},
		{Failure("bad"), "failure: bad"},
		{Exception(errors.New("boom")), "exception: boom"},
		{Outcome{}, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Value: 42}
	if !strings.Contains(err.Error(), "42") {
		t.Errorf("Error() = %q, want it to contain 42", err.Error())
	}
}

func TestStopConfig_Grace(t *testing.T) {
	tests := []struct {
		timeout   int
		wantGrace time.Duration
		wantOK    bool
	}{
		{WaitForever, 0, false},
		{-5, 0, false},
		{StopImmediately, 0, true},
		{1, time.Second, true},
		{30, 30 * time.Second, true},
	}

	for _, tt := range tests {
		grace, ok := StopConfig{StopTimeout: tt.timeout}.Grace()
		if grace != tt.wantGrace || ok != tt.wantOK {
			t.Errorf("Grace(%d) = (%v, %v), want (%v, %v)", tt.timeout, grace, ok, tt.wantGrace, tt.wantOK)
		}
	}

	if DefaultStopConfig().StopTimeout != 30 {
		t.Errorf("DefaultStopConfig().StopTimeout = %d, want 30", DefaultStopConfig().StopTimeout)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateStarting, "starting", false},
		{StateRunning, "running", false},
		{StateExited, "exited", true},
		{StateStopping, "stopping", false},
		{StateTerminated, "terminated", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.state.String() != tt.want {
				t.Errorf("String() = %q, want %q", tt.state.String(), tt.want)
			}
			if tt.state.IsTerminal() != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", tt.state.IsTerminal(), tt.terminal)
			}
		})
	}
}
