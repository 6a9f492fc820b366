package azuredevops

import (
	"strings"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

// forwardStates maps each generic status to the single System.State value
// loom writes. "Paused" requires the state to exist in the project's
// process template; projects without it should override via config.
var forwardStates = map[types.Status]string{
	types.StatusPlanning:  "New",
	types.StatusActive:    "Active",
	types.StatusBacklog:   "Proposed",
	types.StatusPaused:    "Paused",
	types.StatusCompleted: "Closed",
	types.StatusAbandoned: "Removed",
}

// reverseStates folds the common Agile/Scrum/CMMI state names.
var reverseStates = map[string]types.Status{
	"new":         types.StatusPlanning,
	"to do":       types.StatusPlanning,
	"proposed":    types.StatusBacklog,
	"approved":    types.StatusBacklog,
	"active":      types.StatusActive,
	"committed":   types.StatusActive,
	"doing":       types.StatusActive,
	"in progress": types.StatusActive,
	"paused":      types.StatusPaused,
	"on hold":     types.StatusPaused,
	"resolved":    types.StatusCompleted,
	"closed":      types.StatusCompleted,
	"done":        types.StatusCompleted,
	"completed":   types.StatusCompleted,
	"removed":     types.StatusAbandoned,
	"abandoned":   types.StatusAbandoned,
	"cut":         types.StatusAbandoned,
}

// Mapper translates between generic statuses and Azure DevOps work item
// states.
type Mapper struct {
	Overrides map[string]types.Status
}

// NewMapper builds a mapper with reverse-mapping overrides for custom
// process template states.
func NewMapper(overrides map[string]string) *Mapper {
	m := &Mapper{Overrides: make(map[string]types.Status)}
	for native, generic := range overrides {
		if status, err := types.ParseStatus(generic); err == nil {
			m.Overrides[strings.ToLower(native)] = status
		}
	}
	return m
}

// ToNative maps every generic status to exactly one work item state.
func (m *Mapper) ToNative(status types.Status) tracker.NativeStatus {
	return tracker.NativeStatus{State: forwardStates[status]}
}

// FromNative folds a work item state to a generic status, or the unknown
// sentinel for states outside the vocabulary.
func (m *Mapper) FromNative(native tracker.NativeStatus) types.Status {
	state := strings.ToLower(strings.TrimSpace(native.State))
	if status, ok := m.Overrides[state]; ok {
		return status
	}
	if status, ok := reverseStates[state]; ok {
		return status
	}
	return types.StatusUnknown
}
