package tracker

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/internal/types"
)

// Strategy is the configured conflict resolution policy.
type Strategy string

// Resolution strategies
const (
	StrategyLocalWins  Strategy = "local-wins"
	StrategyRemoteWins Strategy = "remote-wins"
	StrategyPromptUser Strategy = "prompt-user"
)

// DefaultStrategy applies when no strategy is configured: never guess,
// always ask.
const DefaultStrategy = StrategyPromptUser

// ParseStrategy validates a configured strategy string. Empty selects the
// default.
func ParseStrategy(raw string) (Strategy, error) {
	if raw == "" {
		return DefaultStrategy, nil
	}
	s := Strategy(raw)
	switch s {
	case StrategyLocalWins, StrategyRemoteWins, StrategyPromptUser:
		return s, nil
	}
	return "", fmt.Errorf("unrecognized conflict strategy %q", raw)
}

// Conflict is the ephemeral record of a detected local/remote divergence.
// It lives only for the duration of a pass (or its parked continuation) and
// in the sync event log.
type Conflict struct {
	IncrementID  string
	Local        types.Status
	Remote       types.Status
	Tracker      string
	LastSyncedAt *time.Time
}

// Action says where a resolution is applied.
type Action string

// Resolution actions
const (
	ActionPushRemote    Action = "push-to-remote"
	ActionWriteLocal    Action = "write-local"
	ActionAwaitDecision Action = "await-decision"
)

// Resolution is the outcome of resolving a conflict. When the strategy is
// prompt-user, Pending carries the decision token and Status is unset: the
// resolver never guesses.
type Resolution struct {
	Status  types.Status
	Action  Action
	Pending *PendingDecision
}

// PendingDecision is the suspend point of a prompt-user resolution. The
// caller supplies a Decision later; the parked pass resumes without
// re-fetching.
type PendingDecision struct {
	Token    string
	Conflict Conflict
}

// Decision is the operator's answer to a pending conflict.
type Decision string

// Operator decisions
const (
	DecisionKeepLocal  Decision = "local"
	DecisionKeepRemote Decision = "remote"
)

// Detect reports whether local and remote status diverge. No conflict is
// ever declared on the very first sync (nil LastSyncedAt: no baseline to
// diverge from), and none when both sides map to the same generic status,
// regardless of surface representation differences.
func Detect(link *types.TrackerLink, local, remote types.Status) bool {
	if link == nil || link.LastSyncedAt == nil {
		return false
	}
	return local != remote
}

// Resolve settles a conflict under the given strategy. prompt-user returns
// a pending marker; the caller completes it via ResolvePending.
func Resolve(conflict Conflict, strategy Strategy) (Resolution, error) {
	switch strategy {
	case StrategyLocalWins:
		return Resolution{Status: conflict.Local, Action: ActionPushRemote}, nil
	case StrategyRemoteWins:
		return Resolution{Status: conflict.Remote, Action: ActionWriteLocal}, nil
	case StrategyPromptUser:
		return Resolution{
			Action: ActionAwaitDecision,
			Pending: &PendingDecision{
				Token:    uuid.NewString(),
				Conflict: conflict,
			},
		}, nil
	}
	return Resolution{}, fmt.Errorf("unrecognized conflict strategy %q", strategy)
}

// ResolvePending completes a suspended prompt-user resolution with the
// operator's decision.
func ResolvePending(pending *PendingDecision, decision Decision) (Resolution, error) {
	switch decision {
	case DecisionKeepLocal:
		return Resolution{Status: pending.Conflict.Local, Action: ActionPushRemote}, nil
	case DecisionKeepRemote:
		return Resolution{Status: pending.Conflict.Remote, Action: ActionWriteLocal}, nil
	}
	return Resolution{}, fmt.Errorf("unrecognized decision %q", decision)
}
