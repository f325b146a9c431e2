// Package repo persists confirmed numbers in Postgres
package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/registry/domain"
)

// Repo defines the registry repository contract
type Repo interface {
	// All returns every number in insertion order
	All(ctx context.Context) ([]string, error)
	List(ctx context.Context, limit, offset int) ([]domain.Entry, error)
	Count(ctx context.Context) (int, error)
	Contains(ctx context.Context, phone string) (bool, error)
	// Append inserts phones and returns how many were not already present
	Append(ctx context.Context, runID string, phones []string) (int, error)
	Delete(ctx context.Context, phones []string) (int, error)
}

type (
	// PG is a Postgres registry repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres registry repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) All(ctx context.Context) ([]string, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (string, error) {
		var p string
		return p, row.Scan(&p)
	}, `SELECT phone FROM registry ORDER BY seq`)
	return out, perr.FromPostgres(err, "load registry")
}

func (r *queries) List(ctx context.Context, limit, offset int) ([]domain.Entry, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Entry, error) {
		var e domain.Entry
		return e, row.Scan(&e.Phone, &e.RunID, &e.AddedAt)
	}, `SELECT phone, run_id, added_at FROM registry ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
	return out, perr.FromPostgres(err, "list registry")
}

func (r *queries) Count(ctx context.Context) (int, error) {
	n, err := store.Scalar[int64](ctx, r.q, `SELECT COUNT(*) FROM registry`)
	return int(n), perr.FromPostgres(err, "count registry")
}

func (r *queries) Contains(ctx context.Context, phone string) (bool, error) {
	ok, err := store.Scalar[bool](ctx, r.q, `SELECT EXISTS (SELECT 1 FROM registry WHERE phone = $1)`, phone)
	return ok, perr.FromPostgresf(err, "registry lookup %s", phone)
}

// Append keeps the order of phones so exports match the order numbers were confirmed
func (r *queries) Append(ctx context.Context, runID string, phones []string) (int, error) {
	if len(phones) == 0 {
		return 0, nil
	}
	const sql = `
		INSERT INTO registry (phone, run_id)
		SELECT p, $2 FROM unnest($1::text[]) WITH ORDINALITY AS t(p, ord)
		ORDER BY ord
		ON CONFLICT (phone) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, sql, phones, runID)
	if err != nil {
		return 0, perr.FromPostgres(err, "append registry")
	}
	return int(tag.RowsAffected()), nil
}

func (r *queries) Delete(ctx context.Context, phones []string) (int, error) {
	if len(phones) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM registry WHERE phone = ANY($1)`, phones)
	if err != nil {
		return 0, perr.FromPostgres(err, "delete registry")
	}
	return int(tag.RowsAffected()), nil
}
