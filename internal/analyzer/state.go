package analyzer

import (
	"errors"
	"fmt"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
)

// State is the lifecycle position of a single analysis.
type State int

const (
	StatePending State = iota
	StateDecoding
	StateMetricsComputed
	StateAggregated
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StatePending:         "pending",
	StateDecoding:        "decoding",
	StateMetricsComputed: "metrics_computed",
	StateAggregated:      "aggregated",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next lists the forward transition of each non-terminal state. Failed is
// reachable from all of them.
var next = map[State]State{
	StatePending:         StateDecoding,
	StateDecoding:        StateMetricsComputed,
	StateMetricsComputed: StateAggregated,
	StateAggregated:      StateDone,
}

type lifecycle struct {
	state State
}

// advance moves to to, rejecting anything but the single forward step or a
// failure from a live state.
func (l *lifecycle) advance(to State) error {
	if l.state.Terminal() {
		return apperrors.NewInternalError(
			fmt.Sprintf("illegal transition %s -> %s: analysis already %s", l.state, to, l.state), nil)
	}
	if to != StateFailed && next[l.state] != to {
		return apperrors.NewInternalError(
			fmt.Sprintf("illegal transition %s -> %s", l.state, to), nil)
	}
	l.state = to
	return nil
}

// fail moves a live analysis to Failed and leaves terminal ones alone.
func (l *lifecycle) fail() {
	if !l.state.Terminal() {
		l.state = StateFailed
	}
}

// stateError records the state an analysis was in when it failed.
type stateError struct {
	state State
	err   error
}

func (e *stateError) Error() string { return e.err.Error() }

func (e *stateError) Unwrap() error { return e.err }

// failureMetadata describes a failed analysis for observers. failed_in is
// absent when loading failed or the analysis was abandoned on timeout.
func failureMetadata(err error) map[string]interface{} {
	meta := map[string]interface{}{"state": StateFailed.String()}
	var se *stateError
	if errors.As(err, &se) {
		meta["failed_in"] = se.state.String()
	}
	return meta
}
