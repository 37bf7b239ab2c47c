package memconsolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// SemanticStore persists the reactor's promoted long-term memory records
// across restarts. [FileSemanticStore] and postgres.Store both implement
// it — the reactor only depends on this interface, not on either concrete
// backend.
type SemanticStore interface {
	Load(ctx context.Context) (map[string]reactortypes.MemoryRecord, error)
	Save(ctx context.Context, records map[string]reactortypes.MemoryRecord) error
}

// FileSemanticStore persists MemoryRecords as a single JSON array file,
// loaded in full at boot and rewritten in full on every insert. Append-only
// versioning would scale better, but a whole-file rewrite is acceptable at
// this process's expected record counts.
type FileSemanticStore struct {
	path string

	mu      sync.Mutex
	records map[string]reactortypes.MemoryRecord
}

type fileRecord struct {
	ID               string                      `json:"id"`
	Hypothesis       reactortypes.Hypothesis     `json:"hypothesis"`
	Confidence       float64                     `json:"confidence"`
	SourceSymbolIDs  []string                    `json:"source_symbol_ids"`
	Fingerprint      string                      `json:"fingerprint"`
	FirstCommittedAt uint64                      `json:"first_committed_at"`
	LastAccessedAt   uint64                      `json:"last_accessed_at"`
	Strength         float64                     `json:"strength"`
}

// NewFileSemanticStore opens (without yet loading) a store backed by path.
func NewFileSemanticStore(path string) *FileSemanticStore {
	return &FileSemanticStore{path: path, records: make(map[string]reactortypes.MemoryRecord)}
}

// Load reads the snapshot file into memory. A missing file is treated as an
// empty store, not an error — there is nothing to recover on first boot.
// ctx is accepted to satisfy [SemanticStore] but unused — file I/O here is
// never cancelled mid-read.
func (f *FileSemanticStore) Load(_ context.Context) (map[string]reactortypes.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.records, nil
		}
		return nil, fmt.Errorf("memconsolidate: read semantic store %q: %w", f.path, err)
	}

	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("memconsolidate: decode semantic store %q: %w", f.path, err)
	}

	f.records = make(map[string]reactortypes.MemoryRecord, len(raw))
	for _, r := range raw {
		f.records[r.ID] = reactortypes.MemoryRecord{
			ID: r.ID,
			Intent: reactortypes.IntentCandidate{
				ID:              r.ID,
				Hypothesis:      r.Hypothesis,
				Confidence:      r.Confidence,
				SourceSymbolIDs: r.SourceSymbolIDs,
				Fingerprint:     r.Fingerprint,
			},
			FirstCommittedAt: reactortypes.Tick{Frame: r.FirstCommittedAt},
			LastAccessedAt:   reactortypes.Tick{Frame: r.LastAccessedAt},
			Strength:         r.Strength,
		}
	}
	return f.records, nil
}

// Save replaces the whole in-memory set with records and rewrites the whole
// file; any record not in records (for example a forgotten one) is dropped.
// ctx is accepted to satisfy [SemanticStore] but
// unused.
func (f *FileSemanticStore) Save(_ context.Context, records map[string]reactortypes.MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = records

	raw := make([]fileRecord, 0, len(records))
	for _, rec := range records {
		raw = append(raw, fileRecord{
			ID:               rec.ID,
			Hypothesis:       rec.Intent.Hypothesis,
			Confidence:       rec.Intent.Confidence,
			SourceSymbolIDs:  rec.Intent.SourceSymbolIDs,
			Fingerprint:      rec.Intent.Fingerprint,
			FirstCommittedAt: rec.FirstCommittedAt.Frame,
			LastAccessedAt:   rec.LastAccessedAt.Frame,
			Strength:         rec.Strength,
		})
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("memconsolidate: encode semantic store: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("memconsolidate: write semantic store %q: %w", f.path, err)
	}
	return nil
}
