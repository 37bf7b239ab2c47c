// Package postgres provides a PostgreSQL-backed implementation of the
// reactor's long-term semantic memory store — an alternative backend to
// memconsolidate.FileSemanticStore for promoted hypotheses.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	records, _ := store.Load(ctx)
//	_ = store.Save(ctx, records)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Long-term memory record DDL — promoted hypotheses (the reactor's semantic
// store, as an alternative backend to memconsolidate.FileSemanticStore)
// ─────────────────────────────────────────────────────────────────────────────

const ddlMemoryRecords = `
CREATE TABLE IF NOT EXISTS memory_records (
    id                  TEXT         PRIMARY KEY,
    hypothesis          JSONB        NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    source_symbol_ids   JSONB        NOT NULL DEFAULT '[]',
    fingerprint         TEXT         NOT NULL DEFAULT '',
    first_committed_at  BIGINT       NOT NULL DEFAULT 0,
    last_accessed_at    BIGINT       NOT NULL DEFAULT 0,
    strength            DOUBLE PRECISION NOT NULL DEFAULT 0
);
`

// Migrate creates or ensures the memory_records table exists. It is
// idempotent (CREATE TABLE IF NOT EXISTS) and safe to call on every
// application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlMemoryRecords); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
