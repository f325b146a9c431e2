package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
)

// Schema creates the sessions table
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name          TEXT PRIMARY KEY,
	file_path     TEXT        NOT NULL,
	active        BOOLEAN     NOT NULL DEFAULT TRUE,
	cooldown_s    INTEGER     NOT NULL DEFAULT 180 CHECK (cooldown_s BETWEEN 0 AND 3600),
	batch_size    INTEGER     NOT NULL DEFAULT 10 CHECK (batch_size BETWEEN 1 AND 100),
	error_count   INTEGER     NOT NULL DEFAULT 0 CHECK (error_count >= 0),
	total_checks  INTEGER     NOT NULL DEFAULT 0 CHECK (total_checks >= 0),
	state         TEXT        NOT NULL DEFAULT 'idle',
	last_used_at  TIMESTAMPTZ,
	last_error    TEXT        NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate applies Schema
func Migrate(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "migrate sessions")
}
