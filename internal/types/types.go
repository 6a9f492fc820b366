// Package types defines core data structures for the loom increment tracker.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of an increment.
type Status string

// Increment status constants
const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusBacklog   Status = "backlog"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"

	// StatusUnknown is the sentinel for a remote state with no reverse mapping.
	// It is never a valid persisted status.
	StatusUnknown Status = "unknown"
)

// IsValid checks if the status is a known persistable value.
// StatusUnknown is deliberately excluded: it only exists as a reverse-mapping
// sentinel and must never be written to either local artifact.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusBacklog, StatusPaused, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle.
// Terminal statuses can only be left via an explicit reopen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CountsTowardWIP reports whether the status counts against WIP limits.
func (s Status) CountsTowardWIP() bool {
	return s == StatusActive || s == StatusPaused
}

// ParseStatus converts a raw string to a Status. Unrecognized values are a
// hard error; persisted data is never coerced to a guessed status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unrecognized status %q", raw)
	}
	return s, nil
}

// IncrementType categorizes an increment and governs transition/limit policy.
type IncrementType string

// Increment type constants
const (
	TypeFeature       IncrementType = "feature"
	TypeBug           IncrementType = "bug"
	TypeHotfix        IncrementType = "hotfix"
	TypeChangeRequest IncrementType = "change-request"
	TypeRefactor      IncrementType = "refactor"
	TypeExperiment    IncrementType = "experiment"
)

// ParseIncrementType validates a raw type string.
func ParseIncrementType(raw string) (IncrementType, error) {
	t := IncrementType(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("unrecognized increment type %q", raw)
	}
	return t, nil
}

// IsValid checks if the increment type is a known value.
func (t IncrementType) IsValid() bool {
	switch t {
	case TypeFeature, TypeBug, TypeHotfix, TypeChangeRequest, TypeRefactor, TypeExperiment:
		return true
	}
	return false
}

// BypassesWIPLimit reports whether increments of this type may be activated
// even when the WIP limit is already reached.
func (t IncrementType) BypassesWIPLimit() bool {
	return t == TypeHotfix || t == TypeBug
}

// MayInterrupt reports whether activating this type may interrupt other
// active work (the caller pauses the interrupted increment).
func (t IncrementType) MayInterrupt() bool {
	return t == TypeHotfix
}

// TrackerLink references a remote tracker item. The remote item is never
// owned by loom; this is a pointer plus the last-observed sync baseline.
type TrackerLink struct {
	Name             string     `json:"name"`
	RemoteID         string     `json:"remoteId"`
	LastSyncedStatus Status     `json:"lastSyncedStatus,omitempty"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt,omitempty"`
}

// Increment represents a unit of trackable work.
//
// Status is never assigned directly by callers; all changes go through the
// lifecycle transition table and are persisted by the consistency guard.
type Increment struct {
	ID           string        `json:"id"`
	Status       Status        `json:"status"`
	Type         IncrementType `json:"type"`
	Created      time.Time     `json:"created"`
	LastActivity time.Time     `json:"lastActivity"`
	Tracker      *TrackerLink  `json:"tracker,omitempty"`

	// Extra holds unknown top-level JSON fields so they survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownIncrementFields are the top-level keys owned by the Increment struct.
var knownIncrementFields = map[string]bool{
	"id":           true,
	"status":       true,
	"type":         true,
	"created":      true,
	"lastActivity": true,
	"tracker":      true,
}

// incrementAlias avoids recursion in the custom JSON codecs.
type incrementAlias Increment

// UnmarshalJSON decodes an increment, capturing unknown top-level fields
// into Extra for forward compatibility.
func (i *Increment) UnmarshalJSON(data []byte) error {
	var alias incrementAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownIncrementFields[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*i = Increment(alias)
	return nil
}

// MarshalJSON encodes an increment, merging preserved unknown fields back in.
func (i Increment) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(incrementAlias(i))
	if err != nil {
		return nil, err
	}
	if len(i.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range i.Extra {
		if knownIncrementFields[key] {
			continue // owned fields always win
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Validate checks structural invariants on a loaded increment.
func (i *Increment) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("increment has empty id")
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("increment %s: unrecognized status %q", i.ID, i.Status)
	}
	if i.Type != "" && !i.Type.IsValid() {
		return fmt.Errorf("increment %s: unrecognized type %q", i.ID, i.Type)
	}
	if i.Tracker != nil {
		if i.Tracker.Name == "" || i.Tracker.RemoteID == "" {
			return fmt.Errorf("increment %s: tracker link missing name or remoteId", i.ID)
		}
	}
	return nil
}

// ArchivalEligible reports whether the increment may be moved out of active
// storage. Archival itself is handled outside the core.
func (i *Increment) ArchivalEligible() bool {
	return i.Status.IsTerminal()
}

// Touch records activity on the increment.
func (i *Increment) Touch(now time.Time) {
	i.LastActivity = now.UTC()
}

// NewIncrement creates an increment in planning, the only intake status.
func NewIncrement(id string, incType IncrementType, now time.Time) *Increment {
	now = now.UTC()
	return &Increment{
		ID:           id,
		Status:       StatusPlanning,
		Type:         incType,
		Created:      now,
		LastActivity: now,
	}
}
