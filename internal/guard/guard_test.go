package guard

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/types"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "increments"))
}

func mustCreate(t *testing.T, g *Guard, id string, status types.Status) *types.Increment {
	t.Helper()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	inc := types.NewIncrement(id, types.TypeFeature, now)
	if err := g.Create(inc); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	if status != types.StatusPlanning {
		if err := g.WriteStatus(id, status); err != nil {
			t.Fatalf("write status: %v", err)
		}
	}
	return inc
}

func TestWriteReadRoundTrip(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0001-auth", types.StatusPlanning)

	for _, status := range []types.Status{types.StatusActive, types.StatusPaused, types.StatusActive, types.StatusCompleted} {
		if err := g.WriteStatus("0001-auth", status); err != nil {
			t.Fatalf("WriteStatus(%s): %v", status, err)
		}

		got, err := g.ReadStatus("0001-auth")
		if err != nil {
			t.Fatalf("ReadStatus after %s: %v", status, err)
		}
		if got != status {
			t.Errorf("ReadStatus = %s, want %s", got, status)
		}

		// Both physical locations must agree after every successful write.
		recStatus, _, err := g.readRecordStatus("0001-auth")
		if err != nil {
			t.Fatalf("record read: %v", err)
		}
		docStatus, _, err := g.readDocumentStatus("0001-auth")
		if err != nil {
			t.Fatalf("document read: %v", err)
		}
		if recStatus != docStatus {
			t.Errorf("artifacts disagree: record=%s document=%s", recStatus, docStatus)
		}
	}
}

func TestReadStatusMissing(t *testing.T) {
	g := newTestGuard(t)
	_, err := g.ReadStatus("0099-ghost")
	if !errors.Is(err, ErrMissing) {
		t.Errorf("err = %v, want ErrMissing", err)
	}
}

func TestValidateDetectsDesyncAfterPartialWrite(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0002-search", types.StatusActive)

	// Simulate a process killed between the record write and the document
	// write: the record advances to completed, the document still says active.
	inc, err := g.Load("0002-search")
	if err != nil {
		t.Fatal(err)
	}
	inc.Status = types.StatusCompleted
	if err := g.writeRecord(inc); err != nil {
		t.Fatal(err)
	}

	err = g.Validate("0002-search")
	var desync *DesyncError
	if !errors.As(err, &desync) {
		t.Fatalf("Validate = %v, want DesyncError", err)
	}
	if desync.RecordStatus != types.StatusCompleted || desync.DocumentStatus != types.StatusActive {
		t.Errorf("DesyncError = %+v", desync)
	}

	// ReadStatus must fail loudly too, never silently trust either copy.
	if _, err := g.ReadStatus("0002-search"); !errors.As(err, &desync) {
		t.Errorf("ReadStatus = %v, want DesyncError", err)
	}
}

func TestValidateRepairsMissingDocument(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0003-billing", types.StatusPaused)

	if err := os.Remove(filepath.Join(g.Root(), "0003-billing", "spec.md")); err != nil {
		t.Fatal(err)
	}

	// An entirely absent side counts as never written: copy from the other.
	if err := g.Validate("0003-billing"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := g.ReadStatus("0003-billing")
	if err != nil {
		t.Fatal(err)
	}
	if got != types.StatusPaused {
		t.Errorf("repaired status = %s, want paused", got)
	}
}

func TestValidateRepairsMissingRecord(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0004-export", types.StatusBacklog)

	if err := os.Remove(filepath.Join(g.Root(), "0004-export", "metadata.json")); err != nil {
		t.Fatal(err)
	}

	if err := g.Validate("0004-export"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := g.ReadStatus("0004-export")
	if err != nil {
		t.Fatal(err)
	}
	if got != types.StatusBacklog {
		t.Errorf("repaired status = %s, want backlog", got)
	}
}

func TestUnrecognizedStatusIsHardError(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0005-etl", types.StatusActive)

	// A legacy value that predates the vocabulary must be rejected, not
	// coerced to a guessed mapping.
	record := `{"id": "0005-etl", "status": "wip"}`
	path := filepath.Join(g.Root(), "0005-etl", "metadata.json")
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := g.Validate("0005-etl"); err == nil || !strings.Contains(err.Error(), "wip") {
		t.Errorf("Validate = %v, want unrecognized status error", err)
	}

	if err := g.WriteStatus("0005-etl", "done"); err == nil {
		t.Error("WriteStatus accepted a non-enum status")
	}
}

func TestStatusRewritePreservesRecordFields(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0006-api", types.StatusPlanning)

	// Inject an unknown top-level field as a future version of loom would.
	path := filepath.Join(g.Root(), "0006-api", "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	raw["reviewGate"] = json.RawMessage(`{"approved": false}`)
	patched, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, patched, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := g.WriteStatus("0006-api", types.StatusActive); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(after), "reviewGate") {
		t.Error("status rewrite dropped an unknown record field")
	}
	if !strings.Contains(string(after), `"status": "active"`) {
		t.Errorf("status not updated: %s", after)
	}
}

func TestStatusRewritePreservesDocumentVerbatim(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0007-docs", types.StatusPlanning)

	doc := `---
id: 0007-docs
status: planning
owner: platform-team
labels: [docs, q3]
---
# Docs overhaul

Body text stays untouched.
`
	path := filepath.Join(g.Root(), "0007-docs", "spec.md")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := g.WriteStatus("0007-docs", types.StatusActive); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(after)
	for _, want := range []string{
		"id: 0007-docs",
		"status: active",
		"owner: platform-team",
		"labels: [docs, q3]",
		"Body text stays untouched.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("document missing %q after rewrite:\n%s", want, got)
		}
	}
	if strings.Contains(got, "planning") {
		t.Errorf("old status survived rewrite:\n%s", got)
	}
}

func TestListAndLoadAll(t *testing.T) {
	g := newTestGuard(t)
	mustCreate(t, g, "0010-a", types.StatusPlanning)
	mustCreate(t, g, "0009-b", types.StatusActive)

	ids, err := g.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "0009-b" || ids[1] != "0010-a" {
		t.Errorf("List = %v, want sorted [0009-b 0010-a]", ids)
	}

	incs, err := g.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(incs) != 2 {
		t.Fatalf("LoadAll returned %d increments", len(incs))
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	g := newTestGuard(t)
	inc := mustCreate(t, g, "0011-dup", types.StatusPlanning)
	if err := g.Create(inc); err == nil {
		t.Error("duplicate create accepted")
	}
}
