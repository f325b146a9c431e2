package service

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	kit "rollcall/internal/platform/testkit"
	"rollcall/internal/services/sessions/domain"
	"rollcall/internal/services/sessions/repo"
)

type fakeTx struct{ repokit.Queryer }

func (fakeTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Session
}

func newMem(rows ...domain.Session) *memRepo {
	m := &memRepo{rows: map[string]domain.Session{}}
	for _, r := range rows {
		m.rows[r.Name] = r
	}
	return m
}

func (m *memRepo) List(context.Context) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, r := range m.rows {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memRepo) Get(_ context.Context, name string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[name]
	if !ok {
		return r, perr.NotFoundf("session %s not found", name)
	}
	return r, nil
}

func (m *memRepo) Insert(_ context.Context, s domain.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.Name]; ok {
		return false, nil
	}
	if s.State == "" {
		s.State = credential.Idle
	}
	m.rows[s.Name] = s
	return true, nil
}

func (m *memRepo) UpdatePath(_ context.Context, name, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[name]
	if !ok {
		return perr.ErrNotFound
	}
	r.FilePath = p
	m.rows[name] = r
	return nil
}

func (m *memRepo) UpdateSettings(_ context.Context, name string, cd, bs int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[name]
	if !ok {
		return perr.ErrNotFound
	}
	r.CooldownSeconds, r.BatchSize, r.Active = cd, bs, active
	m.rows[name] = r
	return nil
}

func (m *memRepo) SaveHealth(_ context.Context, h domain.Health) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[h.Name]
	if !ok {
		return perr.ErrNotFound
	}
	r.State, r.ErrorCount, r.TotalChecks, r.LastError = h.State, h.ErrorCount, h.TotalChecks, h.LastError
	if h.LastUsedAt != nil {
		r.LastUsedAt = h.LastUsedAt
	}
	m.rows[h.Name] = r
	return nil
}

func (m *memRepo) Delete(_ context.Context, names []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range names {
		if _, ok := m.rows[n]; ok {
			delete(m.rows, n)
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeConn struct {
	authorized   bool
	connectErr   error
	disconnected []string
}

func (f *fakeConn) Connect(context.Context, credential.Credential) error { return f.connectErr }
func (f *fakeConn) IsAuthorized(context.Context, credential.Credential) (bool, error) {
	return f.authorized, nil
}
func (f *fakeConn) Disconnect(_ context.Context, c credential.Credential) {
	f.disconnected = append(f.disconnected, c.ID)
}

func newSvc(t *testing.T, dir string, m *memRepo, conn *fakeConn) *Svc {
	t.Helper()
	b := repokit.BindFunc[repo.Repo](func(repokit.Queryer) repo.Repo { return m })
	s := New(fakeTx{}, b, nil, Config{Dir: dir, DefaultCooldown: 180 * time.Second, DefaultBatchSize: 10})
	if conn != nil {
		s.Conn = conn
	}
	return s
}

func touch(t *testing.T, dir, rel string) string {
	t.Helper()
	return kit.WriteFile(t, dir, rel, "session")
}

func TestDiscover_AddsKnownMovedMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	touch(t, dir, "alpha.session")
	betaPath := touch(t, dir, "nested/beta.session")
	touch(t, dir, "notes.txt")

	m := newMem(
		domain.Session{Name: "beta", FilePath: "/old/beta.session", Active: true, CooldownSeconds: 60, BatchSize: 5, State: credential.Idle},
		domain.Session{Name: "gamma", FilePath: "/gone/gamma.session", Active: true, State: credential.Idle},
	)
	s := newSvc(t, dir, m, nil)

	res, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !slices.Equal(res.Added, []string{"alpha"}) {
		t.Fatalf("added = %v", res.Added)
	}
	if !slices.Equal(res.Moved, []string{"beta"}) || res.Known != 1 {
		t.Fatalf("moved = %v known = %d", res.Moved, res.Known)
	}
	if !slices.Equal(res.Missing, []string{"gamma"}) {
		t.Fatalf("missing = %v", res.Missing)
	}

	alpha, _ := m.Get(context.Background(), "alpha")
	if alpha.CooldownSeconds != 180 || alpha.BatchSize != 10 || !alpha.Active {
		t.Fatalf("alpha defaults = %+v", alpha)
	}
	beta, _ := m.Get(context.Background(), "beta")
	if beta.FilePath != betaPath || beta.CooldownSeconds != 60 {
		t.Fatalf("beta should keep settings and get new path, got %+v", beta)
	}

	again, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover again: %v", err)
	}
	if len(again.Added) != 0 || again.Known != 2 {
		t.Fatalf("second scan should be idempotent, got %+v", again)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	t.Parallel()
	s := newSvc(t, filepath.Join(t.TempDir(), "nope"), newMem(), nil)
	_, err := s.Discover(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestUpdate_ValidatesAndMerges(t *testing.T) {
	t.Parallel()
	m := newMem(domain.Session{Name: "a", Active: true, CooldownSeconds: 180, BatchSize: 10, State: credential.Idle})
	s := newSvc(t, t.TempDir(), m, nil)
	ctx := context.Background()

	bs := 25
	got, err := s.Update(ctx, "a", domain.UpdateInput{BatchSize: &bs})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.BatchSize != 25 || got.CooldownSeconds != 180 {
		t.Fatalf("merge failed: %+v", got)
	}

	bad := 101
	_, err = s.Update(ctx, "a", domain.UpdateInput{BatchSize: &bad})
	if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
	neg := -1
	_, err = s.Update(ctx, "a", domain.UpdateInput{Cooldown: &neg})
	if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("want configuration error for cooldown, got %v", err)
	}

	off := false
	got, err = s.Update(ctx, "a", domain.UpdateInput{Active: &off})
	if err != nil || got.Active {
		t.Fatalf("deactivate: %+v %v", got, err)
	}

	if _, err := s.Update(ctx, "zzz", domain.UpdateInput{}); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestRemoveAndPurge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pa := touch(t, dir, "a.session")
	pb := touch(t, dir, "b.session")
	pc := touch(t, dir, "c.session")
	m := newMem(
		domain.Session{Name: "a", FilePath: pa, State: credential.Idle},
		domain.Session{Name: "b", FilePath: pb, State: credential.Unauthorized},
		domain.Session{Name: "c", FilePath: pc, State: credential.Error},
	)
	s := newSvc(t, dir, m, nil)
	ctx := context.Background()

	res, err := s.PurgeInvalid(ctx)
	if err != nil {
		t.Fatalf("PurgeInvalid: %v", err)
	}
	if !slices.Equal(res.Removed, []string{"b", "c"}) || res.FilesDeleted != 2 {
		t.Fatalf("purge = %+v", res)
	}
	if _, err := os.Stat(pb); !os.IsNotExist(err) {
		t.Fatalf("b file should be gone")
	}

	res, err = s.Remove(ctx, domain.RemoveInput{Names: []string{"a", "ghost"}})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !slices.Equal(res.Removed, []string{"a"}) || res.FilesDeleted != 0 {
		t.Fatalf("remove = %+v", res)
	}
	if _, err := os.Stat(pa); err != nil {
		t.Fatalf("a file should stay without delete_file: %v", err)
	}

	if _, err := s.Remove(ctx, domain.RemoveInput{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty remove should be invalid, got %v", err)
	}
}

func TestResetError(t *testing.T) {
	t.Parallel()
	m := newMem(
		domain.Session{Name: "e", State: credential.Error, ErrorCount: 3, LastError: "boom"},
		domain.Session{Name: "u", State: credential.Unauthorized},
	)
	s := newSvc(t, t.TempDir(), m, nil)
	ctx := context.Background()

	got, err := s.ResetError(ctx, "e")
	if err != nil {
		t.Fatalf("ResetError: %v", err)
	}
	if got.State != credential.Idle || got.ErrorCount != 3 {
		t.Fatalf("reset = %+v", got)
	}
	if _, err := s.ResetError(ctx, "u"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("unauthorized reset should conflict, got %v", err)
	}
}

func TestReauthorize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := touch(t, dir, "u.session")
	m := newMem(domain.Session{Name: "u", FilePath: p, State: credential.Unauthorized, BatchSize: 10})
	conn := &fakeConn{authorized: true}
	s := newSvc(t, dir, m, conn)

	got, err := s.Reauthorize(context.Background(), "u")
	if err != nil {
		t.Fatalf("Reauthorize: %v", err)
	}
	if got.State != credential.Idle {
		t.Fatalf("state = %s, want idle", got.State)
	}
	if !slices.Contains(conn.disconnected, "u") {
		t.Fatalf("session should be disconnected after the check")
	}

	conn.authorized = false
	got, err = s.Reauthorize(context.Background(), "u")
	if err != nil {
		t.Fatalf("Reauthorize: %v", err)
	}
	if got.State != credential.Unauthorized {
		t.Fatalf("state = %s, want unauthorized", got.State)
	}
}

func TestReauthorize_NoGateway(t *testing.T) {
	t.Parallel()
	s := newSvc(t, t.TempDir(), newMem(domain.Session{Name: "u"}), nil)
	if _, err := s.Reauthorize(context.Background(), "u"); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
}

func TestCredentials_SkipsInactiveAndMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pa := touch(t, dir, "a.session")
	pb := touch(t, dir, "b.session")
	m := newMem(
		domain.Session{Name: "a", FilePath: pa, Active: true, CooldownSeconds: 30, BatchSize: 500, State: credential.Busy},
		domain.Session{Name: "b", FilePath: pb, Active: false, BatchSize: 10},
		domain.Session{Name: "c", FilePath: filepath.Join(dir, "c.session"), Active: true, BatchSize: 10},
	)
	s := newSvc(t, dir, m, nil)

	creds, err := s.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if len(creds) != 1 || creds[0].ID != "a" {
		t.Fatalf("creds = %+v", creds)
	}
	c := creds[0]
	if c.State != credential.Idle || c.BatchSize != credential.MaxBatchSize || c.Cooldown != 30*time.Second {
		t.Fatalf("credential not clamped: %+v", c)
	}
}

func TestSaveHealth_SkipsRemoved(t *testing.T) {
	t.Parallel()
	m := newMem(domain.Session{Name: "a", State: credential.Idle})
	s := newSvc(t, t.TempDir(), m, nil)

	now := time.Now()
	err := s.SaveHealth(context.Background(), []credential.Credential{
		{ID: "a", State: credential.Busy, TotalChecks: 4, LastUsedAt: now},
		{ID: "gone", State: credential.Error},
	})
	if err != nil {
		t.Fatalf("SaveHealth: %v", err)
	}
	a, _ := m.Get(context.Background(), "a")
	if a.State != credential.Idle || a.TotalChecks != 4 || a.LastUsedAt == nil {
		t.Fatalf("health = %+v", a)
	}
}
