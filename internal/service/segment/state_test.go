package segment

import (
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)

	if lc.State() != StatePartial {
		t.Errorf("expected StatePartial, got %v", lc.State())
	}
	if lc.SegmentID() != "seg-1" {
		t.Errorf("expected seg-1, got %v", lc.SegmentID())
	}
	if lc.IsFinal() {
		t.Error("expected IsFinal to be false")
	}
	if lc.Revisions() != 0 {
		t.Errorf("expected 0 revisions, got %d", lc.Revisions())
	}
}

func TestLifecycle_ObservePartial_Repeated(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)

	for i := 0; i < 5; i++ {
		if err := lc.ObservePartial(); err != nil {
			t.Errorf("partial %d: unexpected error: %v", i, err)
		}
	}

	if lc.State() != StatePartial {
		t.Errorf("expected StatePartial after partials, got %v", lc.State())
	}
	if lc.Revisions() != 5 {
		t.Errorf("expected 5 revisions, got %d", lc.Revisions())
	}
}

func TestLifecycle_ObserveFinal_OnlyFirstSucceeds(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)

	if err := lc.ObserveFinal(); err != nil {
		t.Errorf("first final: unexpected error: %v", err)
	}
	if !lc.IsFinal() {
		t.Error("expected IsFinal after final")
	}

	// Replace-on-emit providers redeliver finals.
	if err := lc.ObserveFinal(); err != ErrAlreadyFinal {
		t.Errorf("second final: expected ErrAlreadyFinal, got %v", err)
	}
}

func TestLifecycle_PartialAfterFinal(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)
	lc.ObserveFinal()

	if err := lc.ObservePartial(); err != ErrPartialAfterFinal {
		t.Errorf("expected ErrPartialAfterFinal, got %v", err)
	}
	if lc.State() != StateFinal {
		t.Errorf("expected state to stay FINAL, got %v", lc.State())
	}
}

func TestLifecycle_PartialLimit(t *testing.T) {
	lc := NewLifecycle("seg-1", 3)

	for i := 0; i < 3; i++ {
		if err := lc.ObservePartial(); err != nil {
			t.Fatalf("partial %d failed: %v", i, err)
		}
	}

	if err := lc.ObservePartial(); err != ErrPartialLimitReached {
		t.Errorf("expected ErrPartialLimitReached, got %v", err)
	}

	// A final is still accepted once the limit is hit.
	if err := lc.ObserveFinal(); err != nil {
		t.Errorf("final after limit: unexpected error: %v", err)
	}
}

func TestLifecycle_Observe_Dispatch(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)

	if err := lc.Observe(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.Observe(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateFinal {
		t.Errorf("expected StateFinal, got %v", lc.State())
	}
}

func TestLifecycle_Close(t *testing.T) {
	lc := NewLifecycle("seg-1", 0)

	lc.Close()
	lc.Close()

	if lc.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", lc.State())
	}
	if err := lc.ObservePartial(); err != ErrSegmentClosed {
		t.Errorf("ObservePartial: expected ErrSegmentClosed, got %v", err)
	}
	if err := lc.ObserveFinal(); err != ErrSegmentClosed {
		t.Errorf("ObserveFinal: expected ErrSegmentClosed, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StatePartial, "PARTIAL"},
		{StateFinal, "FINAL"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}
