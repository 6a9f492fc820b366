package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/types"
)

var allStatuses = []types.Status{
	types.StatusPlanning,
	types.StatusActive,
	types.StatusBacklog,
	types.StatusPaused,
	types.StatusCompleted,
	types.StatusAbandoned,
}

// legalPairs enumerates the full transition table.
var legalPairs = map[types.Status]map[types.Status]bool{
	types.StatusPlanning:  {types.StatusActive: true, types.StatusBacklog: true, types.StatusAbandoned: true},
	types.StatusActive:    {types.StatusPaused: true, types.StatusCompleted: true, types.StatusAbandoned: true},
	types.StatusBacklog:   {types.StatusPlanning: true, types.StatusAbandoned: true},
	types.StatusPaused:    {types.StatusActive: true, types.StatusAbandoned: true},
	types.StatusCompleted: {types.StatusActive: true},
	types.StatusAbandoned: {types.StatusActive: true},
}

func TestCanTransitionFullTable(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := from == to || legalPairs[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionRejectsIllegalPairsWithoutMutation(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to || legalPairs[from][to] {
				continue
			}
			inc := types.Increment{ID: "0010-search", Status: from, LastActivity: now.Add(-time.Hour)}
			got, err := Transition(inc, to, now)

			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("Transition(%s → %s): err = %v, want InvalidTransitionError", from, to, err)
				continue
			}
			if got.Status != from {
				t.Errorf("Transition(%s → %s) mutated status to %s", from, to, got.Status)
			}
			if !got.LastActivity.Equal(inc.LastActivity) {
				t.Errorf("Transition(%s → %s) touched LastActivity on failure", from, to)
			}
		}
	}
}

func TestTransitionNoOpIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	before := now.Add(-time.Hour)
	inc := types.Increment{ID: "0011-index", Status: types.StatusActive, LastActivity: before}

	got, err := Transition(inc, types.StatusActive, now)
	if err != nil {
		t.Fatalf("no-op transition failed: %v", err)
	}
	if !got.LastActivity.Equal(before) {
		t.Error("no-op transition must not touch LastActivity")
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	inc := types.Increment{ID: "0012-etl", Status: types.StatusActive}
	if _, err := Transition(inc, types.StatusUnknown, time.Now()); err == nil {
		t.Error("transition to unknown sentinel accepted")
	}
	if _, err := Transition(inc, "done", time.Now()); err == nil {
		t.Error("transition to non-enum status accepted")
	}
}

func TestReopen(t *testing.T) {
	now := time.Now().UTC()

	for _, from := range []types.Status{types.StatusCompleted, types.StatusAbandoned} {
		inc := types.Increment{ID: "0013-billing", Status: from}
		got, err := Reopen(inc, now)
		if err != nil {
			t.Errorf("Reopen from %s: %v", from, err)
			continue
		}
		if got.Status != types.StatusActive {
			t.Errorf("Reopen from %s = %s, want active", from, got.Status)
		}
	}

	inc := types.Increment{ID: "0013-billing", Status: types.StatusPaused}
	if _, err := Reopen(inc, now); err == nil {
		t.Error("Reopen from paused accepted; only terminal statuses reopen")
	}
}
