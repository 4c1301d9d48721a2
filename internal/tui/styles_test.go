package tui

import (
	"strings"
	"testing"
)

func TestStateIconAndLabel(t *testing.T) {
	tests := []struct {
		state     taskState
		wantIcon  string
		wantLabel string
	}{
		{stateRunning, "●", "running"},
		{stateSucceeded, "✓", "done"},
		{stateFailed, "✗", "failed"},
		{stateCancelled, "○", "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.wantLabel, func(t *testing.T) {
			if got := stateIcon(tt.state); !strings.Contains(got, tt.wantIcon) {
				t.Errorf("stateIcon() = %q, want %q", got, tt.wantIcon)
			}
			if got := stateLabel(tt.state); !strings.Contains(got, tt.wantLabel) {
				t.Errorf("stateLabel() = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}
