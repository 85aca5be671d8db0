package analyzer

import (
	"testing"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
)

func TestLifecycle_ForwardPath(t *testing.T) {
	var lc lifecycle
	for _, s := range []State{StateDecoding, StateMetricsComputed, StateAggregated, StateDone} {
		if err := lc.advance(s); err != nil {
			t.Fatalf("advance(%s): %v", s, err)
		}
	}
	if lc.state != StateDone {
		t.Errorf("Expected done, got %s", lc.state)
	}
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"skip decoding", StatePending, StateMetricsComputed},
		{"backwards", StateAggregated, StateDecoding},
		{"out of done", StateDone, StateFailed},
		{"out of failed", StateFailed, StateDecoding},
		{"pending to done", StatePending, StateDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := lifecycle{state: tt.from}
			err := lc.advance(tt.to)
			if !apperrors.IsType(err, apperrors.ErrorTypeInternal) {
				t.Errorf("Expected internal error, got %v", err)
			}
			if lc.state != tt.from {
				t.Errorf("State changed to %s on illegal transition", lc.state)
			}
		})
	}
}

func TestLifecycle_FailFromAnyLiveState(t *testing.T) {
	for _, s := range []State{StatePending, StateDecoding, StateMetricsComputed, StateAggregated} {
		lc := lifecycle{state: s}
		if err := lc.advance(StateFailed); err != nil {
			t.Errorf("%s -> failed: %v", s, err)
		}
	}

	lc := lifecycle{state: StateDone}
	lc.fail()
	if lc.state != StateDone {
		t.Errorf("fail() must not leave a terminal state, got %s", lc.state)
	}
}

func TestState_String(t *testing.T) {
	if StateMetricsComputed.String() != "metrics_computed" {
		t.Errorf("Unexpected name %q", StateMetricsComputed.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("Unexpected name %q", State(42).String())
	}
}
