package store

import (
	"context"
	"errors"

	perr "rollcall/internal/platform/errors"

	"github.com/jackc/pgx/v5"
)

// ExecOne runs a write and asserts exactly one row was affected.
// Zero rows maps to perr.ErrNotFound
func ExecOne(ctx context.Context, q RowQuerier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	switch n := tag.RowsAffected(); {
	case n == 0:
		return perr.ErrNotFound
	case n > 1:
		return perr.Newf(perr.ErrorCodeDB, "expected one row affected, got %d", n)
	}
	return nil
}

// Scalar queries the first column of the first row into T.
// No rows maps to perr.ErrNotFound
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, perr.ErrNotFound
		}
		return zero, err
	}
	return v, nil
}

// One maps a single row with scan, failing with perr.ErrNotFound when empty
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	var zero T
	items, err := Many(ctx, q, scan, sql, args...)
	if err != nil {
		return zero, err
	}
	switch len(items) {
	case 0:
		return zero, perr.ErrNotFound
	case 1:
		return items[0], nil
	default:
		return zero, perr.Newf(perr.ErrorCodeDB, "expected 1 row, got %d", len(items))
	}
}

// Many maps every row with scan
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []T
	for rs.Next() {
		item, err := scan(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rs.Err()
}
