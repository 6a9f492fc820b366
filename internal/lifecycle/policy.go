package lifecycle

import (
	"fmt"
	"time"

	"github.com/loomworks/loom/internal/types"
)

// StalenessPolicy holds the advisory thresholds for flagging idle increments.
// Zero durations disable the corresponding check.
type StalenessPolicy struct {
	// PausedAfter flags paused increments idle longer than this.
	PausedAfter time.Duration
	// ActiveAfter flags active increments idle longer than this.
	ActiveAfter time.Duration
	// ExperimentAbandonAfter is the idle window after which an experiment
	// increment should be abandoned.
	ExperimentAbandonAfter time.Duration
}

// StalenessReport is a derived, advisory decision. Nothing here mutates the
// increment; the synchronizer decides whether to act on AutoAbandon.
type StalenessReport struct {
	Stale       bool
	AutoAbandon bool
	IdleFor     time.Duration
	Reason      string
}

// Evaluate computes the staleness report for an increment at a point in time.
func (p StalenessPolicy) Evaluate(inc *types.Increment, now time.Time) StalenessReport {
	idle := now.Sub(inc.LastActivity)
	report := StalenessReport{IdleFor: idle}

	switch inc.Status {
	case types.StatusPaused:
		if p.PausedAfter > 0 && idle > p.PausedAfter {
			report.Stale = true
			report.Reason = fmt.Sprintf("paused for %s", idle.Round(time.Hour))
		}
	case types.StatusActive:
		if p.ActiveAfter > 0 && idle > p.ActiveAfter {
			report.Stale = true
			report.Reason = fmt.Sprintf("active with no activity for %s", idle.Round(time.Hour))
		}
	}

	// Experiments are the one exception to advisory-only staleness: an idle
	// experiment yields an abandon decision for the synchronizer to apply.
	if inc.Type == types.TypeExperiment && !inc.Status.IsTerminal() {
		if p.ExperimentAbandonAfter > 0 && idle > p.ExperimentAbandonAfter {
			report.Stale = true
			report.AutoAbandon = true
			report.Reason = fmt.Sprintf("experiment idle for %s", idle.Round(time.Hour))
		}
	}

	return report
}

// WIPLimitError is returned when activating an increment would exceed the
// configured work-in-progress limit.
type WIPLimitError struct {
	Limit   int
	Current int
}

func (e *WIPLimitError) Error() string {
	return fmt.Sprintf("WIP limit reached (%d of %d); pause or complete work first", e.Current, e.Limit)
}

// WIPPolicy caps how many increments may hold a WIP-counting status.
// A zero or negative limit disables enforcement.
type WIPPolicy struct {
	Limit int
}

// CountWIP counts increments whose status counts toward the WIP limit.
func CountWIP(incs []*types.Increment) int {
	n := 0
	for _, inc := range incs {
		if inc.Status.CountsTowardWIP() {
			n++
		}
	}
	return n
}

// CheckActivation decides whether the increment may move to active given the
// current working set. Hotfix and bug types bypass the limit.
func (p WIPPolicy) CheckActivation(inc *types.Increment, existing []*types.Increment) error {
	if p.Limit <= 0 {
		return nil
	}
	if inc.Status.CountsTowardWIP() {
		return nil // already in the working set
	}
	if inc.Type.BypassesWIPLimit() {
		return nil
	}
	if current := CountWIP(existing); current >= p.Limit {
		return &WIPLimitError{Limit: p.Limit, Current: current}
	}
	return nil
}
