package synclog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/types"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "sync-log.jsonl"))
}

func TestAppendAndRead(t *testing.T) {
	l := newTestLog(t)

	first, err := l.Append(Event{
		IncrementID:    "0001-auth",
		Tracker:        "github",
		LocalStatus:    types.StatusActive,
		RemoteStatus:   types.StatusCompleted,
		ResolvedStatus: types.StatusCompleted,
		Strategy:       "remote-wins",
		Outcome:        OutcomeApplied,
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.Time.IsZero() {
		t.Errorf("Append did not assign id/time: %+v", first)
	}

	if _, err := l.Append(Event{
		IncrementID: "0002-search",
		Tracker:     "jira",
		LocalStatus: types.StatusPaused,
		Outcome:     OutcomeError,
		Error:       "jira: request timed out",
	}); err != nil {
		t.Fatal(err)
	}

	events, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("Read returned %d events, want 2", len(events))
	}
	if events[0].IncrementID != "0001-auth" || events[1].IncrementID != "0002-search" {
		t.Errorf("events out of append order: %+v", events)
	}
	if events[1].Outcome != OutcomeError || events[1].Error == "" {
		t.Errorf("error event not recorded: %+v", events[1])
	}
}

func TestReadMissingLogIsEmpty(t *testing.T) {
	l := newTestLog(t)
	events, err := l.Read()
	if err != nil {
		t.Fatalf("Read on missing log: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from missing log", len(events))
	}
}

func TestForIncrement(t *testing.T) {
	l := newTestLog(t)
	for _, id := range []string{"a", "b", "a", "c", "a"} {
		if _, err := l.Append(Event{IncrementID: id, Tracker: "github", Outcome: OutcomeNoop}); err != nil {
			t.Fatal(err)
		}
	}
	events, err := l.ForIncrement("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("ForIncrement(a) returned %d events, want 3", len(events))
	}
}

func TestAppendOnlyGrowth(t *testing.T) {
	l := newTestLog(t)
	l.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

	var sizes []int64
	for i := 0; i < 3; i++ {
		if _, err := l.Append(Event{IncrementID: "0003-etl", Tracker: "azuredevops", Outcome: OutcomeNoop}); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(l.Path())
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, info.Size())
	}
	if !(sizes[0] < sizes[1] && sizes[1] < sizes[2]) {
		t.Errorf("log did not strictly grow: %v", sizes)
	}
}
