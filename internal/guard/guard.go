// Package guard persists increment status redundantly in two artifacts and
// keeps them read-consistent.
//
// Each increment directory holds a structured record (metadata.json) and a
// human-authored document (spec.md) whose frontmatter mirrors the status.
// The guard is the only component that holds both serializers. Writes go
// record first, then document, each via temp-file-plus-atomic-rename, so a
// crash between the two writes is detectable as a desync on the next read
// rather than silently corrupting either copy.
package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/loomworks/loom/internal/types"
)

const (
	recordFile   = "metadata.json"
	documentFile = "spec.md"
)

// ErrMissing indicates the increment has no persisted record.
var ErrMissing = errors.New("increment not found")

// DesyncError reports a disagreement between the two status artifacts.
// It is surfaced loudly and never auto-resolved by picking one side,
// except when one artifact is entirely absent (never written).
type DesyncError struct {
	ID             string
	RecordStatus   types.Status
	DocumentStatus types.Status
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("status desync for %s: metadata.json=%q spec.md=%q",
		e.ID, e.RecordStatus, e.DocumentStatus)
}

// Guard is the dual-artifact consistency guard. All writes for a single
// increment are serialized through a per-id mutex.
type Guard struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a guard rooted at the increments directory.
func New(root string) *Guard {
	return &Guard{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

// Root returns the increments directory the guard operates on.
func (g *Guard) Root() string { return g.root }

// lock returns the per-increment mutex, creating it on first use.
func (g *Guard) lock(id string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[id]
	if !ok {
		l = &sync.Mutex{}
		g.locks[id] = l
	}
	return l
}

func (g *Guard) incrementDir(id string) string { return filepath.Join(g.root, id) }
func (g *Guard) recordPath(id string) string   { return filepath.Join(g.root, id, recordFile) }
func (g *Guard) documentPath(id string) string { return filepath.Join(g.root, id, documentFile) }

// Create persists a new increment: full record plus a document frontmatter
// status. Fails if the increment already exists.
func (g *Guard) Create(inc *types.Increment) error {
	if err := inc.Validate(); err != nil {
		return err
	}

	l := g.lock(inc.ID)
	l.Lock()
	defer l.Unlock()

	dir := g.incrementDir(inc.ID)
	if _, err := os.Stat(g.recordPath(inc.ID)); err == nil {
		return fmt.Errorf("increment %s already exists", inc.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create increment dir: %w", err)
	}

	if err := g.writeRecord(inc); err != nil {
		return err
	}
	return g.writeDocumentStatus(inc.ID, inc.Status)
}

// Load reads the structured record for an increment. It does not check the
// document; use Validate or ReadStatus for the consistency check.
func (g *Guard) Load(id string) (*types.Increment, error) {
	data, err := os.ReadFile(g.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, id)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var inc types.Increment
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, fmt.Errorf("parse record for %s: %w", id, err)
	}
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	return &inc, nil
}

// Save persists the full increment record and mirrors its status into the
// document. Used after lifecycle transitions or tracker-link updates.
func (g *Guard) Save(inc *types.Increment) error {
	if err := inc.Validate(); err != nil {
		return err
	}

	l := g.lock(inc.ID)
	l.Lock()
	defer l.Unlock()

	if _, err := os.Stat(g.recordPath(inc.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissing, inc.ID)
		}
		return err
	}

	if err := g.writeRecord(inc); err != nil {
		return err
	}
	return g.writeDocumentStatus(inc.ID, inc.Status)
}

// WriteStatus updates only the status in both artifacts: record first, then
// document. Other record fields and document frontmatter keys are preserved
// verbatim.
func (g *Guard) WriteStatus(id string, status types.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("refusing to persist unrecognized status %q", status)
	}

	l := g.lock(id)
	l.Lock()
	defer l.Unlock()

	inc, err := g.Load(id)
	if err != nil {
		return err
	}
	inc.Status = status

	if err := g.writeRecord(inc); err != nil {
		return err
	}
	return g.writeDocumentStatus(id, status)
}

// ReadStatus returns the increment's status after checking both artifacts
// agree. A missing document (or missing frontmatter status) is treated as
// never written and repaired from the record; a conflicting value is a
// DesyncError, never a guess.
func (g *Guard) ReadStatus(id string) (types.Status, error) {
	if err := g.Validate(id); err != nil {
		return "", err
	}
	inc, err := g.Load(id)
	if err != nil {
		return "", err
	}
	return inc.Status, nil
}

// Validate checks that both artifacts hold the same status. The only
// auto-repair is copying to an entirely absent side.
func (g *Guard) Validate(id string) error {
	l := g.lock(id)
	l.Lock()
	defer l.Unlock()

	recordStatus, recordOK, err := g.readRecordStatus(id)
	if err != nil {
		return err
	}
	docStatus, docOK, err := g.readDocumentStatus(id)
	if err != nil {
		return err
	}

	switch {
	case !recordOK && !docOK:
		return fmt.Errorf("%w: %s", ErrMissing, id)
	case recordOK && !docOK:
		// Document never written; copy from the record.
		return g.writeDocumentStatus(id, recordStatus)
	case !recordOK && docOK:
		// Record never written; reconstruct a minimal one from the document.
		return g.repairRecordFromDocument(id, docStatus)
	case recordStatus != docStatus:
		return &DesyncError{ID: id, RecordStatus: recordStatus, DocumentStatus: docStatus}
	}
	return nil
}

// List returns the ids of all increments under the guard root, sorted.
func (g *Guard) List() ([]string, error) {
	entries, err := os.ReadDir(g.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list increments: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(g.recordPath(entry.Name())); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll loads every increment record under the guard root.
func (g *Guard) LoadAll() ([]*types.Increment, error) {
	ids, err := g.List()
	if err != nil {
		return nil, err
	}
	incs := make([]*types.Increment, 0, len(ids))
	for _, id := range ids {
		inc, err := g.Load(id)
		if err != nil {
			return nil, err
		}
		incs = append(incs, inc)
	}
	return incs, nil
}

// writeRecord atomically writes metadata.json for the increment.
func (g *Guard) writeRecord(inc *types.Increment) error {
	data, err := json.MarshalIndent(inc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(g.recordPath(inc.ID), data); err != nil {
		return fmt.Errorf("write record for %s: %w", inc.ID, err)
	}
	return nil
}

// writeDocumentStatus atomically rewrites only the status key in the
// document frontmatter, creating a minimal document when absent.
func (g *Guard) writeDocumentStatus(id string, status types.Status) error {
	path := g.documentPath(id)

	var doc string
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		doc = string(data)
	case os.IsNotExist(err):
		doc = "# " + id + "\n"
	default:
		return fmt.Errorf("read document for %s: %w", id, err)
	}

	updated, err := rewriteFrontmatterStatus(doc, string(status))
	if err != nil {
		return fmt.Errorf("rewrite document for %s: %w", id, err)
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return fmt.Errorf("write document for %s: %w", id, err)
	}
	return nil
}

// readRecordStatus reads the status from metadata.json. ok is false when the
// record file does not exist.
func (g *Guard) readRecordStatus(id string) (types.Status, bool, error) {
	data, err := os.ReadFile(g.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read record: %w", err)
	}

	var record struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return "", false, fmt.Errorf("parse record for %s: %w", id, err)
	}
	status, err := types.ParseStatus(record.Status)
	if err != nil {
		return "", false, fmt.Errorf("record for %s: %w", id, err)
	}
	return status, true, nil
}

// readDocumentStatus reads the status from the document frontmatter. ok is
// false when the document or its status key does not exist.
func (g *Guard) readDocumentStatus(id string) (types.Status, bool, error) {
	data, err := os.ReadFile(g.documentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read document: %w", err)
	}

	raw, ok, err := parseFrontmatterStatus(string(data))
	if err != nil {
		return "", false, fmt.Errorf("document for %s: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	status, err := types.ParseStatus(raw)
	if err != nil {
		return "", false, fmt.Errorf("document for %s: %w", id, err)
	}
	return status, true, nil
}

// repairRecordFromDocument reconstructs a minimal record when only the
// document survives. Only called from Validate's missing-side repair path.
func (g *Guard) repairRecordFromDocument(id string, status types.Status) error {
	inc := &types.Increment{ID: id, Status: status}
	return g.writeRecord(inc)
}
