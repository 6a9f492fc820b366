// Package lifecycle implements the increment status state machine.
//
// The transition table is fixed. All status changes flow through Transition;
// nothing else in the codebase assigns Increment.Status.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/loomworks/loom/internal/types"
)

// InvalidTransitionError is returned when a requested status change is not
// in the transition table. The increment is left untouched.
type InvalidTransitionError struct {
	ID   string
	From types.Status
	To   types.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s → %s", e.ID, e.From, e.To)
}

// transitions is the full legal transition table. completed and abandoned
// are terminal except for explicit reopen to active.
var transitions = map[types.Status][]types.Status{
	types.StatusPlanning:  {types.StatusActive, types.StatusBacklog, types.StatusAbandoned},
	types.StatusActive:    {types.StatusPaused, types.StatusCompleted, types.StatusAbandoned},
	types.StatusBacklog:   {types.StatusPlanning, types.StatusAbandoned},
	types.StatusPaused:    {types.StatusActive, types.StatusAbandoned},
	types.StatusCompleted: {types.StatusActive},
	types.StatusAbandoned: {types.StatusActive},
}

// CanTransition reports whether from → to is a legal status change.
// A same-status "change" is allowed as a no-op.
func CanTransition(from, to types.Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of the increment moved to the target status.
// Illegal transitions return InvalidTransitionError and never mutate the
// input. Transitioning to the current status is an idempotent no-op.
func Transition(inc types.Increment, to types.Status, now time.Time) (types.Increment, error) {
	if !to.IsValid() {
		return inc, fmt.Errorf("unrecognized target status %q", to)
	}
	if inc.Status == to {
		return inc, nil
	}
	if !CanTransition(inc.Status, to) {
		return inc, &InvalidTransitionError{ID: inc.ID, From: inc.Status, To: to}
	}

	out := inc
	out.Status = to
	out.Touch(now)
	return out, nil
}

// Reopen moves a terminal increment back to active. It exists as a named
// operation so callers don't encode the reopen rule themselves.
func Reopen(inc types.Increment, now time.Time) (types.Increment, error) {
	if !inc.Status.IsTerminal() {
		return inc, &InvalidTransitionError{ID: inc.ID, From: inc.Status, To: types.StatusActive}
	}
	return Transition(inc, types.StatusActive, now)
}
