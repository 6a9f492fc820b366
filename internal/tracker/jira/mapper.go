package jira

import (
	"strings"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

// forwardStates maps each generic status to the single Jira workflow state
// loom writes.
var forwardStates = map[types.Status]string{
	types.StatusPlanning:  "To Do",
	types.StatusActive:    "In Progress",
	types.StatusBacklog:   "Backlog",
	types.StatusPaused:    "On Hold",
	types.StatusCompleted: "Done",
	types.StatusAbandoned: "Won't Do",
}

// reverseStates is best-effort: Jira projects rename and multiply workflow
// states freely, so every common synonym folds to a generic status.
var reverseStates = map[string]types.Status{
	"to do":            types.StatusPlanning,
	"todo":             types.StatusPlanning,
	"open":             types.StatusPlanning,
	"new":              types.StatusPlanning,
	"backlog":          types.StatusBacklog,
	"selected for dev": types.StatusBacklog,
	"in progress":      types.StatusActive,
	"in development":   types.StatusActive,
	"in review":        types.StatusActive,
	"review":           types.StatusActive,
	"on hold":          types.StatusPaused,
	"blocked":          types.StatusPaused,
	"paused":           types.StatusPaused,
	"done":             types.StatusCompleted,
	"closed":           types.StatusCompleted,
	"resolved":         types.StatusCompleted,
	"complete":         types.StatusCompleted,
	"completed":        types.StatusCompleted,
	"won't do":         types.StatusAbandoned,
	"won't fix":        types.StatusAbandoned,
	"wont do":          types.StatusAbandoned,
	"cancelled":        types.StatusAbandoned,
	"abandoned":        types.StatusAbandoned,
	"duplicate":        types.StatusAbandoned,
}

// Mapper translates between generic statuses and Jira workflow states.
type Mapper struct {
	Overrides map[string]types.Status
}

// NewMapper builds a mapper with reverse-mapping overrides for custom
// workflow states.
func NewMapper(overrides map[string]string) *Mapper {
	m := &Mapper{Overrides: make(map[string]types.Status)}
	for native, generic := range overrides {
		if status, err := types.ParseStatus(generic); err == nil {
			m.Overrides[strings.ToLower(native)] = status
		}
	}
	return m
}

// ToNative maps every generic status to exactly one workflow state name.
func (m *Mapper) ToNative(status types.Status) tracker.NativeStatus {
	return tracker.NativeStatus{State: forwardStates[status]}
}

// FromNative folds a Jira state name to a generic status; unrecognized
// states map to the unknown sentinel rather than failing, since humans add
// custom states out-of-band.
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
