package store

import (
	"context"
	"errors"
	"testing"

	perr "rollcall/internal/platform/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier is a RowQuerier driven by canned results
type fakeQuerier struct {
	execSQL string
	execTag CommandTag
	execErr error

	rows     [][]any
	cols     []string
	queryErr error

	rowVal any
	rowErr error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	f.execSQL = sql
	return f.execTag, f.execErr
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &sliceRows{cols: f.cols, data: f.rows, i: -1}, nil
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) Row {
	return scanFunc(func(dest ...any) error {
		if f.rowErr != nil {
			return f.rowErr
		}
		switch p := dest[0].(type) {
		case *int:
			*p = f.rowVal.(int)
		case *string:
			*p = f.rowVal.(string)
		}
		return nil
	})
}

type scanFunc func(dest ...any) error

func (s scanFunc) Scan(dest ...any) error { return s(dest...) }

type sliceRows struct {
	cols   []string
	data   [][]any
	i      int
	closed bool
}

func (r *sliceRows) Next() bool { r.i++; return r.i < len(r.data) }
func (r *sliceRows) Err() error { return nil }
func (r *sliceRows) Close()     { r.closed = true }
func (r *sliceRows) Columns() []string {
	return r.cols
}
func (r *sliceRows) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.data[r.i][i].(string)
		case *int:
			*p = r.data[r.i][i].(int)
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func TestExecOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cases := []struct {
		name string
		tag  string
		want perr.ErrorCode
		ok   bool
	}{
		{"one", "UPDATE 1", 0, true},
		{"none", "UPDATE 0", perr.ErrorCodeNotFound, false},
		{"many", "DELETE 3", perr.ErrorCodeDB, false},
	}
	for _, tc := range cases {
		q := &fakeQuerier{execTag: pgconn.NewCommandTag(tc.tag)}
		err := ExecOne(ctx, q, "update sessions set state = 'idle'")
		if tc.ok {
			if err != nil {
				t.Fatalf("%s: unexpected %v", tc.name, err)
			}
			continue
		}
		if !perr.IsCode(err, tc.want) {
			t.Fatalf("%s: err = %v, want code %s", tc.name, err, tc.want)
		}
	}

	boom := errors.New("boom")
	if err := ExecOne(ctx, &fakeQuerier{execErr: boom}, "x"); !errors.Is(err, boom) {
		t.Fatalf("exec error not passed through: %v", err)
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	n, err := Scalar[int](ctx, &fakeQuerier{rowVal: 12}, "select count(*) from registry")
	if err != nil || n != 12 {
		t.Fatalf("Scalar = %d, %v", n, err)
	}
	if _, err := Scalar[int](ctx, &fakeQuerier{rowErr: pgx.ErrNoRows}, "x"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("no rows should map to ErrNotFound, got %v", err)
	}
}

func TestManyAndOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	scan := func(r Row) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}

	q := &fakeQuerier{cols: []string{"phone"}, rows: [][]any{{"+1"}, {"+2"}}}
	got, err := Many(ctx, q, scan, "select phone from registry")
	if err != nil || len(got) != 2 || got[1] != "+2" {
		t.Fatalf("Many = %v, %v", got, err)
	}

	if _, err := One(ctx, q, scan, "x"); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("One with two rows = %v", err)
	}
	if _, err := One(ctx, &fakeQuerier{}, scan, "x"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("One with no rows = %v", err)
	}
	v, err := One(ctx, &fakeQuerier{rows: [][]any{{"+9"}}}, scan, "x")
	if err != nil || v != "+9" {
		t.Fatalf("One = %q, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Many(ctx, &fakeQuerier{queryErr: boom}, scan, "x"); !errors.Is(err, boom) {
		t.Fatalf("Many query error = %v", err)
	}
}
