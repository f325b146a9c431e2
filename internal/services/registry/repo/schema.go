package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
)

// Schema creates the registry table. seq keeps insertion order for exports
const Schema = `
CREATE TABLE IF NOT EXISTS registry (
	seq       BIGSERIAL   NOT NULL,
	phone     TEXT        PRIMARY KEY CHECK (phone LIKE '+%'),
	run_id    TEXT        NOT NULL DEFAULT '',
	added_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS registry_seq_idx ON registry (seq)`

// Migrate applies Schema
func Migrate(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "migrate registry")
}
