// Package tracker provides a plugin framework for external issue tracker
// integrations and the engine that keeps increment status reconciled
// against them.
//
// It defines the Adapter and StatusMapper interfaces, a conflict resolver,
// and a sync Engine shared by all integrations (GitHub, Jira, Azure DevOps).
// Adapters only translate and execute; conflict resolution always happens
// here, on the generic status vocabulary.
package tracker

import (
	"context"
	"time"

	"github.com/loomworks/loom/internal/types"
)

// NativeStatus is a tracker's surface representation of a status: a state
// value plus an optional label set. It is deliberately generic so no
// tracker-specific type ever crosses the adapter boundary.
type NativeStatus struct {
	State  string
	Labels []string
}

// RemoteStatus is the observation returned by a fetch.
type RemoteStatus struct {
	Native     NativeStatus
	ObservedAt time.Time
}

// Adapter is the boundary to one external tracker. Implementations own the
// network calls and the vocabulary translation, nothing more.
type Adapter interface {
	// Name returns the lowercase identifier for this tracker (e.g., "github").
	Name() string

	// DisplayName returns the human-readable name (e.g., "GitHub").
	DisplayName() string

	// FetchRemoteStatus reads the current native status of a remote item.
	FetchRemoteStatus(ctx context.Context, remoteID string) (*RemoteStatus, error)

	// ApplyStatus writes a generic status to the remote item, translated
	// through the adapter's forward mapping.
	ApplyStatus(ctx context.Context, remoteID string, status types.Status) error

	// PostAuditComment records a status change on the remote item so the
	// remote audience can see what loom did and why.
	PostAuditComment(ctx context.Context, remoteID string, from, to types.Status) error

	// Mapper returns the status mapper for this tracker.
	Mapper() StatusMapper
}

// StatusMapper converts between the generic status vocabulary and one
// tracker's native vocabulary.
//
// ToNative must be total: every valid generic status maps to exactly one
// native representation. FromNative is best-effort: a native state a human
// introduced out-of-band maps to types.StatusUnknown, never an error.
type StatusMapper interface {
	ToNative(status types.Status) NativeStatus
	FromNative(native NativeStatus) types.Status
}
