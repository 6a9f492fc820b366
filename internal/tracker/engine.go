package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/loomworks/loom/internal/guard"
	"github.com/loomworks/loom/internal/lifecycle"
	"github.com/loomworks/loom/internal/synclog"
	"github.com/loomworks/loom/internal/types"
)

// PassState names the phases of a sync pass.
type PassState string

// Sync pass states
const (
	PassIdle       PassState = "idle"
	PassFetching   PassState = "fetching"
	PassComparing  PassState = "comparing"
	PassConflicted PassState = "conflicted"
	PassConsistent PassState = "consistent"
	PassApplying   PassState = "applying"
	PassLogging    PassState = "logging"
)

// PassResult summarizes one sync pass for one increment.
type PassResult struct {
	IncrementID  string
	Tracker      string
	State        PassState // final state: PassIdle, or PassConflicted when parked
	Outcome      synclog.Outcome
	Resolved     types.Status
	PendingToken string
	Err          error
}

// parkedPass holds everything needed to resume a prompt-user conflict
// without re-fetching from the tracker.
type parkedPass struct {
	pending *PendingDecision
	remote  *RemoteStatus
	adapter Adapter
}

// Engine orchestrates sync passes: it loads local state through the
// consistency guard, fetches remote state through an adapter, resolves
// divergence, routes the write to the winning side, and records every
// attempted mutation in the sync event log.
//
// A pass for one increment runs end-to-end before the next for that
// increment begins; parallelism exists only across increments.
type Engine struct {
	Guard    *guard.Guard
	Log      *synclog.Log
	Strategy Strategy

	// Staleness is the advisory policy. The engine acts on its auto-abandon
	// decision for experiment increments; everything else is reporting only.
	Staleness lifecycle.StalenessPolicy

	// Adapters maps tracker name to its configured adapter.
	Adapters map[string]Adapter

	// Actor is stamped on every sync event for the audit trail.
	Actor string

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)

	now func() time.Time

	mu          sync.Mutex
	parked      map[string]*parkedPass // decision token → parked pass
	parkedByInc map[string]string      // increment id → decision token

	passCounter     metric.Int64Counter
	conflictCounter metric.Int64Counter
}

// NewEngine creates a sync engine.
func NewEngine(g *guard.Guard, log *synclog.Log, strategy Strategy, adapters map[string]Adapter) *Engine {
	meter := otel.Meter("github.com/loomworks/loom/internal/tracker")
	passCounter, _ := meter.Int64Counter("loom.sync.passes",
		metric.WithDescription("Completed sync passes by outcome"))
	conflictCounter, _ := meter.Int64Counter("loom.sync.conflicts",
		metric.WithDescription("Detected status conflicts by tracker"))

	if strategy == "" {
		strategy = DefaultStrategy
	}

	return &Engine{
		Guard:           g,
		Log:             log,
		Strategy:        strategy,
		Adapters:        adapters,
		now:             time.Now,
		parked:          make(map[string]*parkedPass),
		parkedByInc:     make(map[string]string),
		passCounter:     passCounter,
		conflictCounter: conflictCounter,
	}
}

func (e *Engine) message(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

// logEvent appends the event unconditionally and counts the pass. Failure
// to append is a hard error: an unauditable mutation must not pass silently.
func (e *Engine) logEvent(ctx context.Context, event synclog.Event) error {
	if event.Actor == "" {
		event.Actor = e.Actor
	}
	if _, err := e.Log.Append(event); err != nil {
		return fmt.Errorf("sync log append: %w", err)
	}
	e.passCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(event.Outcome)),
		attribute.String("tracker", event.Tracker),
	))
	return nil
}

// SyncIncrement runs one sync pass for the increment. Fetch failures abort
// the pass with local state untouched. A prompt-user conflict parks the
// pass and returns a pending token; re-running while parked returns the
// same token without re-fetching.
func (e *Engine) SyncIncrement(ctx context.Context, id string) (*PassResult, error) {
	// Cooperative cancellation: no new passes after the signal.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Idempotent resume point: a parked pass stays parked.
	e.mu.Lock()
	if token, ok := e.parkedByInc[id]; ok {
		parked := e.parked[token]
		e.mu.Unlock()
		return &PassResult{
			IncrementID:  id,
			Tracker:      parked.pending.Conflict.Tracker,
			State:        PassConflicted,
			Outcome:      synclog.OutcomePending,
			PendingToken: token,
		}, nil
	}
	e.mu.Unlock()

	result := &PassResult{IncrementID: id, State: PassIdle}

	// Load local truth through the guard; a desync or missing increment
	// surfaces before any network traffic.
	if _, err := e.Guard.ReadStatus(id); err != nil {
		result.Outcome = synclog.OutcomeError
		result.Err = err
		logErr := e.logEvent(ctx, synclog.Event{
			IncrementID: id,
			Outcome:     synclog.OutcomeError,
			Error:       err.Error(),
		})
		if logErr != nil {
			return result, logErr
		}
		return result, err
	}
	inc, err := e.Guard.Load(id)
	if err != nil {
		return result, err
	}

	// Act on the one non-advisory staleness decision.
	if report := e.Staleness.Evaluate(inc, e.now()); report.AutoAbandon {
		if err := e.autoAbandon(ctx, inc, report); err != nil {
			result.Outcome = synclog.OutcomeError
			result.Err = err
			return result, err
		}
	}

	if inc.Tracker == nil {
		result.Outcome = synclog.OutcomeNoop
		return result, nil
	}
	result.Tracker = inc.Tracker.Name

	adapter := e.Adapters[inc.Tracker.Name]
	if adapter == nil {
		err := fmt.Errorf("no adapter configured for tracker %q", inc.Tracker.Name)
		result.Outcome = synclog.OutcomeError
		result.Err = err
		if logErr := e.logEvent(ctx, synclog.Event{
			IncrementID: id,
			Tracker:     inc.Tracker.Name,
			LocalStatus: inc.Status,
			Outcome:     synclog.OutcomeError,
			Error:       err.Error(),
		}); logErr != nil {
			return result, logErr
		}
		return result, err
	}

	return e.runPass(ctx, inc, adapter)
}

// runPass drives Fetching → Comparing → (Conflicted|Consistent) → Applying
// → Logging for a loaded increment.
func (e *Engine) runPass(ctx context.Context, inc *types.Increment, adapter Adapter) (*PassResult, error) {
	id := inc.ID
	result := &PassResult{IncrementID: id, Tracker: adapter.Name(), State: PassFetching}

	remote, err := adapter.FetchRemoteStatus(ctx, inc.Tracker.RemoteID)
	if err != nil {
		// Abort cleanly: local state untouched, failure audited.
		if !errors.Is(err, ErrRemoteNotFound) {
			err = &UnavailableError{Tracker: adapter.Name(), Op: "fetch", Err: err}
		}
		result.State = PassIdle
		result.Outcome = synclog.OutcomeError
		result.Err = err
		if logErr := e.logEvent(ctx, synclog.Event{
			IncrementID: id,
			Tracker:     adapter.Name(),
			LocalStatus: inc.Status,
			Outcome:     synclog.OutcomeError,
			Error:       err.Error(),
		}); logErr != nil {
			return result, logErr
		}
		return result, err
	}

	result.State = PassComparing
	remoteStatus := adapter.Mapper().FromNative(remote.Native)

	if remoteStatus == types.StatusUnknown {
		// A human introduced a state out-of-band. Not fatal; visible to the
		// operator through the log and the warning channel.
		e.warn("%s: remote state %q has no mapping, skipping", id, remote.Native.State)
		result.State = PassIdle
		result.Outcome = synclog.OutcomeNoop
		if err := e.logEvent(ctx, synclog.Event{
			IncrementID:  id,
			Tracker:      adapter.Name(),
			LocalStatus:  inc.Status,
			RemoteStatus: types.StatusUnknown,
			Outcome:      synclog.OutcomeNoop,
			Error:        fmt.Sprintf("unmapped remote state %q", remote.Native.State),
		}); err != nil {
			return result, err
		}
		return result, nil
	}

	if !Detect(inc.Tracker, inc.Status, remoteStatus) {
		// Consistent, or first sync with no baseline to diverge from.
		// Either way: record the observation as the new baseline.
		result.State = PassConsistent
		if err := e.recordBaseline(inc, remoteStatus); err != nil {
			return result, err
		}
		result.State = PassIdle
		result.Outcome = synclog.OutcomeNoop
		if err := e.logEvent(ctx, synclog.Event{
			IncrementID:  id,
			Tracker:      adapter.Name(),
			LocalStatus:  inc.Status,
			RemoteStatus: remoteStatus,
			Outcome:      synclog.OutcomeNoop,
		}); err != nil {
			return result, err
		}
		return result, nil
	}

	result.State = PassConflicted
	conflict := Conflict{
		IncrementID:  id,
		Local:        inc.Status,
		Remote:       remoteStatus,
		Tracker:      adapter.Name(),
		LastSyncedAt: inc.Tracker.LastSyncedAt,
	}
	e.conflictCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tracker", adapter.Name()),
	))

	resolution, err := Resolve(conflict, e.Strategy)
	if err != nil {
		result.Outcome = synclog.OutcomeError
		result.Err = err
		return result, err
	}

	if resolution.Action == ActionAwaitDecision {
		// Park the pass: zero mutations to local or remote until a
		// decision arrives, and no re-fetch on resume.
		e.mu.Lock()
		e.parked[resolution.Pending.Token] = &parkedPass{
			pending: resolution.Pending,
			remote:  remote,
			adapter: adapter,
		}
		e.parkedByInc[id] = resolution.Pending.Token
		e.mu.Unlock()

		result.Outcome = synclog.OutcomePending
		result.PendingToken = resolution.Pending.Token
		e.message("%s: conflict parked awaiting decision (local=%s remote=%s)", id, conflict.Local, conflict.Remote)
		if err := e.logEvent(ctx, synclog.Event{
			IncrementID:  id,
			Tracker:      adapter.Name(),
			LocalStatus:  conflict.Local,
			RemoteStatus: conflict.Remote,
			Strategy:     string(StrategyPromptUser),
			Outcome:      synclog.OutcomePending,
		}); err != nil {
			return result, err
		}
		return result, nil
	}

	return e.apply(ctx, inc, adapter, conflict, resolution, string(e.Strategy))
}

// apply commits a resolution: local-side writes go through the consistency
// guard, remote-side writes through the adapter, and the event log records
// the attempt either way.
func (e *Engine) apply(ctx context.Context, inc *types.Increment, adapter Adapter, conflict Conflict, resolution Resolution, strategy string) (*PassResult, error) {
	id := inc.ID
	result := &PassResult{
		IncrementID: id,
		Tracker:     adapter.Name(),
		State:       PassApplying,
		Resolved:    resolution.Status,
	}

	event := synclog.Event{
		IncrementID:    id,
		Tracker:        adapter.Name(),
		LocalStatus:    conflict.Local,
		RemoteStatus:   conflict.Remote,
		ResolvedStatus: resolution.Status,
		Strategy:       strategy,
	}

	var applyErr error
	switch resolution.Action {
	case ActionPushRemote:
		applyErr = adapter.ApplyStatus(ctx, inc.Tracker.RemoteID, resolution.Status)
		if applyErr == nil {
			if err := adapter.PostAuditComment(ctx, inc.Tracker.RemoteID, conflict.Remote, resolution.Status); err != nil {
				e.warn("%s: audit comment failed: %v", id, err)
			}
			applyErr = e.recordBaseline(inc, resolution.Status)
		} else if !errors.Is(applyErr, ErrRemoteNotFound) {
			applyErr = &UnavailableError{Tracker: adapter.Name(), Op: "apply", Err: applyErr}
		}

	case ActionWriteLocal:
		updated, err := lifecycle.Transition(*inc, resolution.Status, e.now())
		if err != nil {
			applyErr = err
		} else {
			*inc = updated
			applyErr = e.recordBaseline(inc, resolution.Status)
		}

	default:
		applyErr = fmt.Errorf("unexpected resolution action %q", resolution.Action)
	}

	result.State = PassLogging
	if applyErr != nil {
		event.Outcome = synclog.OutcomeError
		event.Error = applyErr.Error()
	} else {
		event.Outcome = synclog.OutcomeApplied
	}
	if err := e.logEvent(ctx, event); err != nil {
		return result, err
	}

	result.State = PassIdle
	result.Outcome = event.Outcome
	result.Err = applyErr
	if applyErr != nil {
		return result, applyErr
	}
	e.message("%s: %s (%s → %s)", id, strategy, conflict.Local, resolution.Status)
	return result, nil
}

// recordBaseline persists the increment with an updated sync baseline. For
// local-side resolutions the increment's status has already been moved by
// the lifecycle transition; the guard write keeps both artifacts agreeing.
func (e *Engine) recordBaseline(inc *types.Increment, synced types.Status) error {
	now := e.now().UTC()
	inc.Tracker.LastSyncedStatus = synced
	inc.Tracker.LastSyncedAt = &now
	return e.Guard.Save(inc)
}

// autoAbandon applies the experiment staleness decision before the remote
// phase of a pass, and audits it.
func (e *Engine) autoAbandon(ctx context.Context, inc *types.Increment, report lifecycle.StalenessReport) error {
	prior := inc.Status
	updated, err := lifecycle.Transition(*inc, types.StatusAbandoned, e.now())
	if err != nil {
		return err
	}
	*inc = updated
	if err := e.Guard.Save(inc); err != nil {
		return err
	}

	tracker := ""
	if inc.Tracker != nil {
		tracker = inc.Tracker.Name
	}
	e.message("%s: auto-abandoned (%s)", inc.ID, report.Reason)
	return e.logEvent(ctx, synclog.Event{
		IncrementID:    inc.ID,
		Tracker:        tracker,
		LocalStatus:    prior,
		ResolvedStatus: types.StatusAbandoned,
		Strategy:       "auto-abandon",
		Outcome:        synclog.OutcomeApplied,
	})
}

// Resume completes a parked prompt-user pass with the operator's decision.
// The stored remote observation is reused; nothing is re-fetched.
func (e *Engine) Resume(ctx context.Context, token string, decision Decision) (*PassResult, error) {
	e.mu.Lock()
	parked, ok := e.parked[token]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown decision token %q", token)
	}

	resolution, err := ResolvePending(parked.pending, decision)
	if err != nil {
		return nil, err
	}

	// Local truth may have moved while parked; reload through the guard.
	inc, err := e.Guard.Load(parked.pending.Conflict.IncrementID)
	if err != nil {
		return nil, err
	}
	if inc.Tracker == nil {
		return nil, fmt.Errorf("increment %s lost its tracker link while parked", inc.ID)
	}

	result, err := e.apply(ctx, inc, parked.adapter, parked.pending.Conflict, resolution, string(StrategyPromptUser))
	if err != nil {
		return result, err
	}

	e.mu.Lock()
	delete(e.parked, token)
	delete(e.parkedByInc, inc.ID)
	e.mu.Unlock()
	return result, nil
}

// Pending returns the parked decisions, for operator listing.
func (e *Engine) Pending() []*PendingDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := make([]*PendingDecision, 0, len(e.parked))
	for _, parked := range e.parked {
		pending = append(pending, parked.pending)
	}
	return pending
}

// SyncAll runs a pass for every increment, up to limit at a time. Errors
// abort only their own increment's pass; the rest continue.
func (e *Engine) SyncAll(ctx context.Context, limit int) ([]*PassResult, error) {
	ids, err := e.Guard.List()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 4
	}

	results := make([]*PassResult, len(ids))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			result, err := e.SyncIncrement(ctx, id)
			if result == nil {
				result = &PassResult{IncrementID: id, Outcome: synclog.OutcomeError, Err: err}
			}
			results[i] = result
			return nil // per-increment failures live in the result
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
