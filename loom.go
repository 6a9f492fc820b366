// Package loom provides a minimal public API for embedding loom's
// increment tracking in other Go programs.
//
// Most integrations should shell out to the loom CLI; this package exports
// only the types and constructors needed to read and mutate a project's
// increments programmatically.
package loom

import (
	"github.com/loomworks/loom/internal/guard"
	"github.com/loomworks/loom/internal/synclog"
	"github.com/loomworks/loom/internal/types"
)

// Core types for working with increments
type (
	Increment     = types.Increment
	Status        = types.Status
	IncrementType = types.IncrementType
	TrackerLink   = types.TrackerLink
)

// Status constants
const (
	StatusPlanning  = types.StatusPlanning
	StatusActive    = types.StatusActive
	StatusBacklog   = types.StatusBacklog
	StatusPaused    = types.StatusPaused
	StatusCompleted = types.StatusCompleted
	StatusAbandoned = types.StatusAbandoned
)

// IncrementType constants
const (
	TypeFeature       = types.TypeFeature
	TypeBug           = types.TypeBug
	TypeHotfix        = types.TypeHotfix
	TypeChangeRequest = types.TypeChangeRequest
	TypeRefactor      = types.TypeRefactor
	TypeExperiment    = types.TypeExperiment
)

// Guard is the dual-artifact store for a project's increments.
type Guard = guard.Guard

// NewGuard opens the increments directory (usually .loom/increments) for
// programmatic access.
func NewGuard(dir string) *Guard {
	return guard.New(dir)
}

// SyncLog is the append-only sync event log.
type SyncLog = synclog.Log

// NewSyncLog opens the sync event log (usually .loom/sync-log.jsonl).
func NewSyncLog(path string) *SyncLog {
	return synclog.New(path)
}
