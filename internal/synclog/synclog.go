// Package synclog is the append-only audit log for sync decisions.
//
// Every attempted mutation during a sync pass produces exactly one entry,
// including failures, so no outcome is invisible after the fact. Entries are
// JSON lines, immutable once written; there is no compaction.
package synclog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/internal/types"
)

// Outcome classifies the result of a sync pass for one increment.
type Outcome string

// Sync outcomes
const (
	OutcomeApplied Outcome = "applied" // resolution applied to local or remote
	OutcomeNoop    Outcome = "noop"    // statuses already agreed
	OutcomePending Outcome = "pending" // conflict parked awaiting a decision
	OutcomeError   Outcome = "error"   // pass aborted; local state untouched
)

// Event is one immutable sync log entry.
type Event struct {
	ID             string       `json:"id"`
	Time           time.Time    `json:"time"`
	IncrementID    string       `json:"incrementId"`
	Tracker        string       `json:"tracker"`
	LocalStatus    types.Status `json:"localStatus"`
	RemoteStatus   types.Status `json:"remoteStatus,omitempty"`
	ResolvedStatus types.Status `json:"resolvedStatus,omitempty"`
	Strategy       string       `json:"strategy,omitempty"`
	Outcome        Outcome      `json:"outcome"`
	Actor          string       `json:"actor,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Log appends sync events to a JSONL file. Appends are serialized; the file
// only ever grows.
type Log struct {
	path string
	mu   sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// New creates a log writing to the given JSONL path.
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes one event. The event's ID and Time are assigned here so
// callers can't accidentally reuse or backdate entries.
func (l *Log) Append(event Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.ID = uuid.NewString()
	event.Time = l.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("encode sync event: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return Event{}, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Event{}, fmt.Errorf("open sync log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return Event{}, fmt.Errorf("append sync event: %w", err)
	}
	return event, nil
}

// Read returns all events in append order. The log may grow without bound,
// so entries are streamed line by line rather than slurped through a single
// decoder.
func (l *Log) Read() ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open sync log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("corrupt sync log entry: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sync log: %w", err)
	}
	return events, nil
}

// ForIncrement returns the events for a single increment, oldest first.
func (l *Log) ForIncrement(id string) ([]Event, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, event := range all {
		if event.IncrementID == id {
			events = append(events, event)
		}
	}
	return events, nil
}
