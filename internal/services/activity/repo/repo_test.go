package repo

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/activity/domain"
)

type fakeRows struct {
	data [][]any
	i    int
}

func (f *fakeRows) Next() bool { f.i++; return f.i <= len(f.data) }
func (f *fakeRows) Scan(dest ...any) error {
	for j, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(f.data[f.i-1][j]))
	}
	return nil
}
func (f *fakeRows) Err() error        { return nil }
func (f *fakeRows) Close()            {}
func (f *fakeRows) Columns() []string { return nil }

type fakeCH struct {
	table string
	rows  [][]any
	sql   string
	args  []any
	execs []string
	out   *fakeRows
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	f.table, f.rows = table, rows
	return nil
}

func (f *fakeCH) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeCH) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.sql, f.args = sql, args
	return f.out, nil
}

func (f *fakeCH) Close() error { return nil }

func TestInsert_RowLayout(t *testing.T) {
	t.Parallel()
	f := &fakeCH{}
	r := NewCH(f)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	seen := now.Add(-time.Hour)

	err := r.Insert(context.Background(), "run-1", []activity.Record{
		{Phone: "+1", UserID: 7, Username: "u", Status: activity.Offline, LastSeen: &seen, CheckTime: now, IsPremium: true},
		{Phone: "+2", Status: activity.NotRegistered, CheckTime: now},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if f.table != Table || len(f.rows) != 2 || len(f.rows[0]) != 12 {
		t.Fatalf("table=%s rows=%v", f.table, f.rows)
	}
	first := f.rows[0]
	if first[0] != "run-1" || first[2] != int64(7) || first[9] != "offline" || first[6] != true {
		t.Fatalf("row = %v", first)
	}
	if ls := first[10].(*time.Time); ls.Location() != time.UTC || !ls.Equal(seen) {
		t.Fatalf("last_seen = %v", ls)
	}
	if f.rows[1][10].(*time.Time) != nil {
		t.Fatalf("missing last_seen should insert NULL")
	}

	if err := r.Insert(context.Background(), "run-1", nil); err != nil || len(f.rows) != 2 {
		t.Fatalf("empty insert should not hit clickhouse")
	}
}

func TestRecords_FilterAndScan(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	var noSeen *time.Time
	f := &fakeCH{out: &fakeRows{data: [][]any{
		{"run-1", "+1", int64(7), "u", "A", "B", true, false, true, "recently", &now, now},
		{"run-1", "+2", int64(0), "", "", "", false, false, false, "not_registered", noSeen, now},
	}}}
	r := NewCH(f)

	rows, err := r.Records(context.Background(), domain.Filter{RunID: "run-1", Status: activity.Recently, Limit: 10})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if !strings.Contains(f.sql, "WHERE run_id = ? AND status = ?") || len(f.args) != 3 || f.args[2] != 10 {
		t.Fatalf("sql=%s args=%v", f.sql, f.args)
	}
	if len(rows) != 2 || !rows[0].IsActive || rows[1].IsActive || rows[0].Status != activity.Recently {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestStatusCounts(t *testing.T) {
	t.Parallel()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	f := &fakeCH{out: &fakeRows{data: [][]any{
		{"online", uint64(3), early},
		{"offline", uint64(2), late},
	}}}

	counts, latest, err := NewCH(f).StatusCounts(context.Background(), "")
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[activity.Online] != 3 || counts[activity.Offline] != 2 || !latest.Equal(late) {
		t.Fatalf("counts=%v latest=%v", counts, latest)
	}
	if strings.Contains(f.sql, "WHERE") {
		t.Fatalf("no run id should not filter: %s", f.sql)
	}
}

func TestMigrate(t *testing.T) {
	t.Parallel()
	f := &fakeCH{}
	if err := NewCH(f).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(f.execs) != 1 || !strings.Contains(f.execs[0], "CREATE TABLE IF NOT EXISTS activity_records") {
		t.Fatalf("execs = %v", f.execs)
	}
}
