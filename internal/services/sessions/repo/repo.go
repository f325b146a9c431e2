// Package repo persists session settings and health in Postgres
package repo

import (
	"context"

	"rollcall/internal/core/credential"
	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/sessions/domain"
)

// Repo defines the sessions repository contract
type Repo interface {
	List(ctx context.Context) ([]domain.Session, error)
	Get(ctx context.Context, name string) (domain.Session, error)

	// Insert adds a new session and reports false when the name already exists
	Insert(ctx context.Context, s domain.Session) (bool, error)
	UpdatePath(ctx context.Context, name, filePath string) error
	UpdateSettings(ctx context.Context, name string, cooldownS, batchSize int, active bool) error
	SaveHealth(ctx context.Context, h domain.Health) error
	Delete(ctx context.Context, names []string) ([]string, error)
}

type (
	// PG is a Postgres sessions repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres sessions repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const selectCols = `name, file_path, active, cooldown_s, batch_size, error_count, total_checks, state, last_used_at, last_error`

func scanSession(r store.Row) (domain.Session, error) {
	var s domain.Session
	var st string
	err := r.Scan(&s.Name, &s.FilePath, &s.Active, &s.CooldownSeconds, &s.BatchSize,
		&s.ErrorCount, &s.TotalChecks, &st, &s.LastUsedAt, &s.LastError)
	s.State = credential.ParseState(st)
	return s, err
}

// List returns every session ordered by name
func (r *queries) List(ctx context.Context) ([]domain.Session, error) {
	out, err := store.Many(ctx, r.q, scanSession, `SELECT `+selectCols+` FROM sessions ORDER BY name`)
	if err != nil {
		return nil, perr.FromPostgres(err, "list sessions")
	}
	return out, nil
}

// Get returns one session
func (r *queries) Get(ctx context.Context, name string) (domain.Session, error) {
	s, err := store.One(ctx, r.q, scanSession, `SELECT `+selectCols+` FROM sessions WHERE name = $1`, name)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return s, perr.NotFoundf("session %q not found", name)
	}
	if err != nil {
		return s, perr.FromPostgresf(err, "get session %s", name)
	}
	return s, nil
}

// Insert adds a session with its settings; existing names are left untouched
func (r *queries) Insert(ctx context.Context, s domain.Session) (bool, error) {
	const sql = `
		INSERT INTO sessions (name, file_path, active, cooldown_s, batch_size, error_count, total_checks, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, NOW())
		ON CONFLICT (name) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, sql, s.Name, s.FilePath, s.Active, s.CooldownSeconds, s.BatchSize, string(credential.Idle))
	if err != nil {
		return false, perr.FromPostgresf(err, "insert session %s", s.Name)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePath records a session file that moved within the sessions dir
func (r *queries) UpdatePath(ctx context.Context, name, filePath string) error {
	err := store.ExecOne(ctx, r.q, `UPDATE sessions SET file_path = $2, updated_at = NOW() WHERE name = $1`, name, filePath)
	return r.wrap(err, name, "update session path")
}

// UpdateSettings replaces the operator editable knobs
func (r *queries) UpdateSettings(ctx context.Context, name string, cooldownS, batchSize int, active bool) error {
	const sql = `
		UPDATE sessions
		SET cooldown_s = $2, batch_size = $3, active = $4, updated_at = NOW()
		WHERE name = $1
	`
	return r.wrap(store.ExecOne(ctx, r.q, sql, name, cooldownS, batchSize, active), name, "update session settings")
}

// SaveHealth writes state and counters. Counters never move backwards
func (r *queries) SaveHealth(ctx context.Context, h domain.Health) error {
	const sql = `
		UPDATE sessions
		SET state = $2,
		    error_count = GREATEST(error_count, $3),
		    total_checks = GREATEST(total_checks, $4),
		    last_used_at = COALESCE($5, last_used_at),
		    last_error = $6,
		    updated_at = NOW()
		WHERE name = $1
	`
	var used any
	if h.LastUsedAt != nil {
		used = h.LastUsedAt.UTC()
	}
	return r.wrap(store.ExecOne(ctx, r.q, sql, h.Name, string(h.State), h.ErrorCount, h.TotalChecks, used, h.LastError),
		h.Name, "save session health")
}

// Delete removes sessions by name and returns the names that existed
func (r *queries) Delete(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out, err := store.Many(ctx, r.q, func(row store.Row) (string, error) {
		var n string
		return n, row.Scan(&n)
	}, `DELETE FROM sessions WHERE name = ANY($1) RETURNING name`, names)
	if err != nil {
		return nil, perr.FromPostgres(err, "delete sessions")
	}
	return out, nil
}

func (r *queries) wrap(err error, name, msg string) error {
	switch {
	case err == nil:
		return nil
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		return perr.NotFoundf("session %q not found", name)
	default:
		return perr.FromPostgresf(err, "%s %s", msg, name)
	}
}
