package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// Load reads every promoted hypothesis record from memory_records. It
// implements the same contract as memconsolidate.FileSemanticStore.Load, so
// a *Store can be passed anywhere a file-backed store is accepted.
func (s *Store) Load(ctx context.Context) (map[string]reactortypes.MemoryRecord, error) {
	const q = `
		SELECT id, hypothesis, confidence, source_symbol_ids, fingerprint,
		       first_committed_at, last_accessed_at, strength
		FROM   memory_records`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("semantic store: load: %w", err)
	}
	defer rows.Close()

	records := make(map[string]reactortypes.MemoryRecord)
	for rows.Next() {
		var (
			id                               string
			hypothesisJSON, symbolIDsJSON    []byte
			confidence, strength             float64
			fingerprint                      string
			firstCommittedAt, lastAccessedAt uint64
		)
		if err := rows.Scan(&id, &hypothesisJSON, &confidence, &symbolIDsJSON,
			&fingerprint, &firstCommittedAt, &lastAccessedAt, &strength); err != nil {
			return nil, fmt.Errorf("semantic store: scan: %w", err)
		}

		var hypothesis reactortypes.Hypothesis
		if err := json.Unmarshal(hypothesisJSON, &hypothesis); err != nil {
			return nil, fmt.Errorf("semantic store: unmarshal hypothesis %q: %w", id, err)
		}
		var symbolIDs []string
		if len(symbolIDsJSON) > 0 {
			if err := json.Unmarshal(symbolIDsJSON, &symbolIDs); err != nil {
				return nil, fmt.Errorf("semantic store: unmarshal source symbol ids %q: %w", id, err)
			}
		}

		records[id] = reactortypes.MemoryRecord{
			ID: id,
			Intent: reactortypes.IntentCandidate{
				ID:              id,
				Hypothesis:      hypothesis,
				Confidence:      confidence,
				SourceSymbolIDs: symbolIDs,
				Fingerprint:     fingerprint,
			},
			FirstCommittedAt: reactortypes.Tick{Frame: firstCommittedAt},
			LastAccessedAt:   reactortypes.Tick{Frame: lastAccessedAt},
			Strength:         strength,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic store: load: %w", err)
	}
	return records, nil
}

// Save upserts every record in records and deletes any row no longer present
// in the set, inside a single transaction. A row whose id is absent from
// records is removed — the same "absence means forgotten" contract
// memconsolidate.FileSemanticStore.Save uses.
func (s *Store) Save(ctx context.Context, records map[string]reactortypes.MemoryRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("semantic store: save: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM memory_records WHERE id != ALL($1)`, keysOf(records)); err != nil {
		return fmt.Errorf("semantic store: save: prune: %w", err)
	}

	const upsert = `
		INSERT INTO memory_records
		    (id, hypothesis, confidence, source_symbol_ids, fingerprint,
		     first_committed_at, last_accessed_at, strength)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		    hypothesis         = EXCLUDED.hypothesis,
		    confidence         = EXCLUDED.confidence,
		    source_symbol_ids  = EXCLUDED.source_symbol_ids,
		    fingerprint        = EXCLUDED.fingerprint,
		    first_committed_at = EXCLUDED.first_committed_at,
		    last_accessed_at   = EXCLUDED.last_accessed_at,
		    strength           = EXCLUDED.strength`

	for id, rec := range records {
		hypothesisJSON, err := json.Marshal(rec.Intent.Hypothesis)
		if err != nil {
			return fmt.Errorf("semantic store: save: marshal hypothesis %q: %w", id, err)
		}
		symbolIDsJSON, err := json.Marshal(rec.Intent.SourceSymbolIDs)
		if err != nil {
			return fmt.Errorf("semantic store: save: marshal source symbol ids %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx, upsert,
			id, hypothesisJSON, rec.Intent.Confidence, symbolIDsJSON, rec.Intent.Fingerprint,
			rec.FirstCommittedAt.Frame, rec.LastAccessedAt.Frame, rec.Strength,
		); err != nil {
			return fmt.Errorf("semantic store: save: upsert %q: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("semantic store: save: commit: %w", err)
	}
	return nil
}

func keysOf(records map[string]reactortypes.MemoryRecord) []string {
	keys := make([]string, 0, len(records))
	for id := range records {
		keys = append(keys, id)
	}
	return keys
}
