package authgate

import (
	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_CONTROLLER_TRANSITION"

// ErrInvalidTransition reports a state change outside the controller's
// transition table.
var ErrInvalidTransition = goerrors.New("invalid controller state transition", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeInternal)

// Every operation enters Busy first and leaves it for exactly one resting
// state. Password reset never enters Busy and keeps the current state.
var controllerTransitions = map[ControllerState]map[ControllerState]struct{}{
	StateIdle: {
		StateBusy: {},
	},
	StateBusy: {
		StateIdle:                 {},
		StateAwaitingVerification: {},
		StateActive:               {},
		StateFailed:               {},
	},
	StateAwaitingVerification: {
		StateBusy: {},
	},
	StateActive: {
		StateBusy: {},
	},
	StateFailed: {
		StateBusy: {},
	},
}

// CanTransition reports whether the controller may move from one state to
// another.
func CanTransition(from, to ControllerState) bool {
	if allowed, ok := controllerTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// checkTransition wraps ErrInvalidTransition with both states.
func checkTransition(from, to ControllerState) error {
	if CanTransition(from, to) {
		return nil
	}
	return goerrors.Wrap(ErrInvalidTransition, goerrors.CategoryInternal, "controller transition rejected").
		WithMetadata(map[string]any{
			"from": from.String(),
			"to":   to.String(),
		})
}
