package github

import (
	"strings"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

// GitHub has no workflow states, only open/closed plus labels. Statuses
// that don't fit the binary state ride on scoped "status:*" labels.
const (
	stateOpen   = "open"
	stateClosed = "closed"

	labelAbandoned = "status:abandoned"
)

// statusLabels carries the open sub-states that the binary state can't.
var statusLabels = map[types.Status]string{
	types.StatusPlanning: "status:planning",
	types.StatusActive:   "status:active",
	types.StatusBacklog:  "status:backlog",
	types.StatusPaused:   "status:paused",
}

// labelStatuses is the reverse of statusLabels.
var labelStatuses = map[string]types.Status{
	"status:planning": types.StatusPlanning,
	"status:active":   types.StatusActive,
	"status:backlog":  types.StatusBacklog,
	"status:paused":   types.StatusPaused,
}

// Mapper translates between generic statuses and GitHub's open/closed
// state plus label vocabulary.
type Mapper struct {
	// Overrides maps lowercase native state names to generic statuses,
	// extending the reverse mapping for nonstandard setups.
	Overrides map[string]types.Status
}

// NewMapper builds a mapper with the given reverse-mapping overrides
// (native state name → generic status string). Invalid override targets
// are dropped rather than installed as traps.
func NewMapper(overrides map[string]string) *Mapper {
	m := &Mapper{Overrides: make(map[string]types.Status)}
	for native, generic := range overrides {
		if status, err := types.ParseStatus(generic); err == nil {
			m.Overrides[strings.ToLower(native)] = status
		}
	}
	return m
}

// ToNative maps every generic status to exactly one state+labels form.
func (m *Mapper) ToNative(status types.Status) tracker.NativeStatus {
	switch status {
	case types.StatusCompleted:
		return tracker.NativeStatus{State: stateClosed}
	case types.StatusAbandoned:
		return tracker.NativeStatus{State: stateClosed, Labels: []string{labelAbandoned}}
	default:
		native := tracker.NativeStatus{State: stateOpen}
		if label, ok := statusLabels[status]; ok {
			native.Labels = []string{label}
		}
		return native
	}
}

// FromNative maps a GitHub state+labels observation back to a generic
// status. The closed state wins over any label; an open issue without a
// recognized status label reads as active (GitHub's default for worked
// issues). A state outside open/closed maps to the unknown sentinel.
func (m *Mapper) FromNative(native tracker.NativeStatus) types.Status {
	state := strings.ToLower(native.State)

	if status, ok := m.Overrides[state]; ok {
		return status
	}

	switch state {
	case stateClosed:
		for _, label := range native.Labels {
			if strings.EqualFold(label, labelAbandoned) {
				return types.StatusAbandoned
			}
		}
		return types.StatusCompleted
	case stateOpen:
		for _, label := range native.Labels {
			if status, ok := labelStatuses[strings.ToLower(label)]; ok {
				return status
			}
		}
		return types.StatusActive
	}
	return types.StatusUnknown
}

// mergeStatusLabels replaces any status:* labels in existing with the ones
// for the new status, preserving every unrelated label verbatim.
func mergeStatusLabels(existing []string, native tracker.NativeStatus) []string {
	merged := make([]string, 0, len(existing)+1)
	for _, label := range existing {
		if strings.HasPrefix(strings.ToLower(label), "status:") {
			continue
		}
		merged = append(merged, label)
	}
	return append(merged, native.Labels...)
}
