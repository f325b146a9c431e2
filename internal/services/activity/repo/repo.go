// Package repo stores activity records in ClickHouse
package repo

import (
	"context"
	"strings"
	"time"

	"rollcall/internal/core/activity"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/activity/domain"
)

// Table is the ClickHouse table activity records land in
const Table = "activity_records"

// Schema creates Table
const Schema = `
CREATE TABLE IF NOT EXISTS activity_records (
	run_id      String,
	phone       String,
	user_id     Int64,
	username    String,
	first_name  String,
	last_name   String,
	is_premium  Bool,
	is_bot      Bool,
	is_verified Bool,
	status      LowCardinality(String),
	last_seen   Nullable(DateTime64(3, 'UTC')),
	check_time  DateTime64(3, 'UTC')
)
ENGINE = MergeTree
ORDER BY (run_id, phone, check_time)`

// CH is the ClickHouse activity repository
type CH struct{ ch store.Clickhouse }

// NewCH constructs the repository over a ClickHouse seam
func NewCH(ch store.Clickhouse) *CH { return &CH{ch: ch} }

// Migrate applies Schema
func (r *CH) Migrate(ctx context.Context) error {
	if err := r.ch.Exec(ctx, Schema); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "migrate %s", Table)
	}
	return nil
}

// Insert writes recs in one batch
func (r *CH) Insert(ctx context.Context, runID string, recs []activity.Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		var seen *time.Time
		if rec.LastSeen != nil {
			t := rec.LastSeen.UTC()
			seen = &t
		}
		rows[i] = []any{
			runID, rec.Phone, rec.UserID, rec.Username, rec.FirstName, rec.LastName,
			rec.IsPremium, rec.IsBot, rec.IsVerified, string(rec.Status), seen, rec.CheckTime.UTC(),
		}
	}
	if err := r.ch.Insert(ctx, Table, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "insert %d activity records", len(rows))
	}
	return nil
}

// Records lists rows newest first
func (r *CH) Records(ctx context.Context, f domain.Filter) ([]domain.Row, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT run_id, phone, user_id, username, first_name, last_name,
		is_premium, is_bot, is_verified, status, last_seen, check_time
		FROM activity_records`)
	where, args := filterSQL(f)
	sb.WriteString(where)
	sb.WriteString(` ORDER BY check_time DESC, phone LIMIT ?`)
	args = append(args, f.Limit)

	rows, err := r.ch.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "query activity records")
	}
	defer rows.Close()

	out := []domain.Row{}
	for rows.Next() {
		var (
			row domain.Row
			st  string
		)
		if err := rows.Scan(&row.RunID, &row.Phone, &row.UserID, &row.Username, &row.FirstName, &row.LastName,
			&row.IsPremium, &row.IsBot, &row.IsVerified, &st, &row.LastSeen, &row.CheckTime); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeDB, "scan activity record")
		}
		row.Status = activity.Status(st)
		row.IsActive = row.Record.IsActive()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "iterate activity records")
	}
	return out, nil
}

// StatusCounts returns the raw per status counts and the latest check time
func (r *CH) StatusCounts(ctx context.Context, runID string) (map[activity.Status]int, *time.Time, error) {
	where, args := filterSQL(domain.Filter{RunID: runID})
	rows, err := r.ch.Query(ctx, `SELECT status, count() AS n, max(check_time) AS latest FROM activity_records`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeDB, "query activity summary")
	}
	defer rows.Close()

	out := map[activity.Status]int{}
	var latest *time.Time
	for rows.Next() {
		var (
			st string
			n  uint64
			at time.Time
		)
		if err := rows.Scan(&st, &n, &at); err != nil {
			return nil, nil, perr.Wrapf(err, perr.ErrorCodeDB, "scan activity summary")
		}
		out[activity.Status(st)] += int(n)
		if latest == nil || at.After(*latest) {
			latest = &at
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeDB, "iterate activity summary")
	}
	return out, latest, nil
}

func filterSQL(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Phone != "" {
		conds = append(conds, "phone = ?")
		args = append(args, f.Phone)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
