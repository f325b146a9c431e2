package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/core/pool"
	perr "rollcall/internal/platform/errors"
	kit "rollcall/internal/platform/testkit"
)

// fakeProber confirms every item unless told otherwise
type fakeProber struct {
	mu        sync.Mutex
	batches   map[string][][]string
	bases     []int64
	authCalls map[string]int
	live      map[string]int
	overlap   bool

	revokeOnProbe map[string]bool
	failFirst     map[string]error
	notRegistered map[string]bool
	gate          chan struct{}
	entered       chan struct{}
}

func newFake() *fakeProber {
	return &fakeProber{
		batches:       map[string][][]string{},
		authCalls:     map[string]int{},
		live:          map[string]int{},
		revokeOnProbe: map[string]bool{},
		failFirst:     map[string]error{},
		notRegistered: map[string]bool{},
	}
}

func (f *fakeProber) Connect(context.Context, credential.Credential) error { return nil }

func (f *fakeProber) IsAuthorized(_ context.Context, c credential.Credential) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls[c.ID]++
	return !(f.revokeOnProbe[c.ID] && f.authCalls[c.ID] > 1), nil
}

func (f *fakeProber) Disconnect(context.Context, credential.Credential) {}

func (f *fakeProber) Probe(_ context.Context, c credential.Credential, b SubBatch) Result[string] {
	f.mu.Lock()
	f.live[c.ID]++
	if f.live[c.ID] > 1 {
		f.overlap = true
	}
	f.batches[c.ID] = append(f.batches[c.ID], slices.Clone(b.Items))
	f.bases = append(f.bases, b.ContactBase)
	failErr, fail := f.failFirst[c.ID]
	delete(f.failFirst, c.ID)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.live[c.ID]--
	f.mu.Unlock()

	if fail {
		return Classify[string](failErr)
	}
	var out []string
	for _, it := range b.Items {
		if !f.notRegistered[it] {
			out = append(out, it)
		}
	}
	return Ok(out)
}

type recorder struct {
	progress []int
	states   []string
	waits    int
	logs     []string
	outcomes int
	reports  int
}

func (r *recorder) sink() FuncSink[string] {
	return FuncSink[string]{
		Progress:        func(checked, _ int) { r.progress = append(r.progress, checked) },
		Outcomes:        func(b []string) { r.outcomes += len(b) },
		CredentialState: func(c credential.Credential, _ error) { r.states = append(r.states, c.ID+":"+string(c.State)) },
		Waiting:         func(time.Duration, time.Time) { r.waits++ },
		Log:             func(m string) { r.logs = append(r.logs, m) },
		RunComplete:     func(Report[string]) { r.reports++ },
	}
}

func fastConfig() Config {
	return Config{ChunkSize: 100, InitGroupSize: 5, WaitStatusEvery: time.Second, ProbeTimeout: time.Second}
}

func mkPool(batch int, cooldown time.Duration, ids ...string) *pool.Pool {
	cs := make([]*credential.Credential, len(ids))
	for i, id := range ids {
		c := credential.New(id, "")
		c.BatchSize = batch
		c.Cooldown = cooldown
		cs[i] = c
	}
	return pool.New(cs...)
}

func TestRun_SingleCredentialBatches(t *testing.T) {
	t.Parallel()

	f := newFake()
	rec := &recorder{}
	s := New[string](fastConfig(), mkPool(2, 0, "a"), f, rec.sink())

	rep, err := s.Run(context.Background(), []string{"A", "B", "C", "D", "E"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := [][]string{{"A", "B"}, {"C", "D"}, {"E"}}
	if !slices.EqualFunc(f.batches["a"], want, slices.Equal) {
		t.Fatalf("batches = %v, want %v", f.batches["a"], want)
	}
	if !slices.Equal(rec.progress, []int{2, 4, 5}) {
		t.Fatalf("progress = %v", rec.progress)
	}
	if !slices.Equal(f.bases, []int64{0, 2, 4}) {
		t.Fatalf("contact bases = %v", f.bases)
	}
	if rep.Checked != 5 || len(rep.Outcomes) != 5 || rep.Exhausted || rep.Stopped {
		t.Fatalf("report = %+v", rep)
	}
	if s.Phase() != Completed || rec.reports != 1 {
		t.Fatalf("phase = %s, reports = %d", s.Phase(), rec.reports)
	}
}

func TestRun_TwoCredentialsOneScan(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := New[string](fastConfig(), mkPool(3, 0, "a", "b"), f, nil)

	rep, err := s.Run(context.Background(), []string{"A", "B", "C", "D", "E"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.EqualFunc(f.batches["a"], [][]string{{"A", "B", "C"}}, slices.Equal) ||
		!slices.EqualFunc(f.batches["b"], [][]string{{"D", "E"}}, slices.Equal) {
		t.Fatalf("batches = %v", f.batches)
	}
	got := slices.Clone(rep.Outcomes)
	slices.Sort(got)
	if !slices.Equal(got, []string{"A", "B", "C", "D", "E"}) {
		t.Fatalf("outcomes = %v", rep.Outcomes)
	}
}

func TestRun_UnauthorizedOnFirstProbeExhaustsPool(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.revokeOnProbe["a"] = true
	rec := &recorder{}
	s := New[string](fastConfig(), mkPool(10, 0, "a"), f, rec.sink())

	rep, err := s.Run(context.Background(), []string{"A", "B", "C"})
	if !perr.IsCode(err, perr.ErrorCodePoolExhausted) {
		t.Fatalf("want pool exhausted, got %v", err)
	}
	if !rep.Exhausted || len(rep.Outcomes) != 0 || rep.Checked != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if len(f.batches["a"]) != 0 {
		t.Fatalf("probe should not run after failed auth recheck")
	}
	if rec.reports != 1 {
		t.Fatalf("run complete fired %d times", rec.reports)
	}
	n := 0
	for _, l := range rec.logs {
		if strings.Contains(l, "unusable") {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("exhaustion reported %d times: %v", n, rec.logs)
	}
	if last := rec.states[len(rec.states)-1]; last != "a:unauthorized" {
		t.Fatalf("last state = %s", last)
	}
}

func TestRun_TransientFailureRequeues(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.failFirst["a"] = errors.New("read: connection reset")
	p := mkPool(2, 0, "a", "b")
	s := New[string](fastConfig(), p, f, nil)

	rep, err := s.Run(context.Background(), []string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := slices.Clone(rep.Outcomes)
	slices.Sort(got)
	if !slices.Equal(got, []string{"A", "B", "C", "D"}) {
		t.Fatalf("outcomes = %v", got)
	}
	if rep.Checked != 4 {
		t.Fatalf("checked = %d", rep.Checked)
	}
	a, _ := p.Get("a")
	if a.State != credential.Error || a.ErrorCount != 1 || a.TotalChecks != 1 {
		t.Fatalf("a = %+v", a)
	}
	var seen [][]string
	seen = append(seen, f.batches["b"]...)
	found := false
	for _, b := range seen {
		if slices.Contains(b, "A") {
			found = true
		}
	}
	if !found {
		t.Fatalf("failed items never reappeared: %v", f.batches)
	}
	if f.overlap {
		t.Fatalf("credential had two probes in flight")
	}
}

func TestRun_OnlyConfirmedItemsAreOutcomes(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.notRegistered["B"] = true
	rep, err := New[string](fastConfig(), mkPool(5, 0, "a"), f, nil).Run(context.Background(), []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(rep.Outcomes, []string{"A", "C"}) || rep.Checked != 3 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRun_WaitsForCooldown(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.WaitStatusEvery = 10 * time.Millisecond
	f := newFake()
	rec := &recorder{}
	s := New[string](cfg, mkPool(1, 60*time.Millisecond, "a"), f, rec.sink())

	start := time.Now()
	rep, err := s.Run(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if el := time.Since(start); el < 60*time.Millisecond {
		t.Fatalf("finished in %v, before cooldown", el)
	}
	if rec.waits < 1 {
		t.Fatalf("no waiting status emitted")
	}
	if rep.Checked != 2 {
		t.Fatalf("checked = %d", rep.Checked)
	}
}

func TestRun_WaitingReportedAtStartOfCooldown(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.InitPause = 0
	f := newFake()
	rec := &recorder{}
	s := New[string](cfg, mkPool(1, 200*time.Millisecond, "a"), f, rec.sink())

	rep, err := s.Run(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cfg.WaitStatusEvery <= 200*time.Millisecond {
		t.Fatalf("status interval %v must outlast the cooldown", cfg.WaitStatusEvery)
	}
	if rec.waits != 1 {
		t.Fatalf("waits = %d, want 1 when the wait begins", rec.waits)
	}
	if rep.Checked != 2 {
		t.Fatalf("checked = %d", rep.Checked)
	}
}

// slowDisconnect holds every Disconnect call for delay
type slowDisconnect struct {
	*fakeProber
	delay time.Duration
	calls chan string
}

func (f slowDisconnect) Disconnect(ctx context.Context, c credential.Credential) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}
	f.calls <- c.ID
}

func TestRun_DisconnectDoesNotBlockStop(t *testing.T) {
	t.Parallel()

	f := slowDisconnect{fakeProber: newFake(), delay: 800 * time.Millisecond, calls: make(chan string, 2)}
	f.revokeOnProbe["a"] = true
	s := New[string](fastConfig(), mkPool(1, 10*time.Second, "a", "b"), f, nil)

	type out struct {
		rep Report[string]
		err error
	}
	res := make(chan out, 1)
	start := time.Now()
	go func() {
		rep, err := s.Run(context.Background(), []string{"A", "B", "C"})
		res <- out{rep, err}
	}()

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	select {
	case r := <-res:
		if r.err != nil || !r.rep.Stopped {
			t.Fatalf("rep = %+v err = %v", r.rep, r.err)
		}
		if el := time.Since(start); el >= 500*time.Millisecond {
			t.Fatalf("stop honored after %v", el)
		}
	case <-time.After(700 * time.Millisecond):
		t.Fatalf("run still blocked after stop")
	}

	select {
	case id := <-f.calls:
		if id != "a" {
			t.Fatalf("disconnected %q, want a", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("revoked session never disconnected")
	}
}

func TestRun_StopKeepsInflightOutcomes(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 4)
	s := New[string](fastConfig(), mkPool(2, 0, "a"), f, nil)

	type out struct {
		rep Report[string]
		err error
	}
	res := make(chan out, 1)
	go func() {
		rep, err := s.Run(context.Background(), []string{"A", "B", "C", "D"})
		res <- out{rep, err}
	}()

	<-f.entered
	s.Stop()
	kit.Eventually(t, time.Second, func() bool { return s.Phase() == Draining }, "draining")
	close(f.gate)

	r := <-res
	if r.err != nil {
		t.Fatalf("Run: %v", r.err)
	}
	if !r.rep.Stopped || !slices.Equal(r.rep.Outcomes, []string{"A", "B"}) || r.rep.Checked != 2 {
		t.Fatalf("report = %+v", r.rep)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	f := newFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := New[string](fastConfig(), mkPool(2, 0, "a"), f, nil).Run(ctx, []string{"A"})
	if !errors.Is(err, context.Canceled) || !rep.Stopped {
		t.Fatalf("rep = %+v err = %v", rep, err)
	}
}

func TestRun_NoUsableCredential(t *testing.T) {
	t.Parallel()

	p := mkPool(2, 0, "a")
	c, _ := p.Get("a")
	c.State = credential.Unauthorized
	rec := &recorder{}
	rep, err := New[string](fastConfig(), p, newFake(), rec.sink()).Run(context.Background(), []string{"A"})
	if !perr.IsCode(err, perr.ErrorCodePoolExhausted) || !rep.Exhausted || rec.reports != 1 {
		t.Fatalf("rep = %+v err = %v", rep, err)
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	t.Parallel()

	s := New[string](fastConfig(), mkPool(2, 0, "a"), newFake(), nil)
	if _, err := s.Run(context.Background(), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := s.Run(context.Background(), nil); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("second run err = %v", err)
	}
}

func TestRun_ManyItemsAcrossChunks(t *testing.T) {
	t.Parallel()

	items := make([]string, 0, 250)
	for i := range 250 {
		items = append(items, fmt.Sprintf("+1555%07d", i))
	}
	cfg := fastConfig()
	cfg.ChunkSize = 40
	f := newFake()
	rec := &recorder{}
	rep, err := New[string](cfg, mkPool(7, 0, "a", "b", "c"), f, rec.sink()).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := map[string]int{}
	for _, o := range rep.Outcomes {
		seen[o]++
	}
	if len(seen) != len(items) {
		t.Fatalf("distinct outcomes = %d, want %d", len(seen), len(items))
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("%s confirmed %d times", k, n)
		}
	}
	if !slices.IsSorted(rec.progress) || rec.progress[len(rec.progress)-1] != len(items) {
		t.Fatalf("progress not monotonic or short: %v", rec.progress)
	}
	if f.overlap {
		t.Fatalf("credential had two probes in flight")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Kind
	}{
		{nil, Success},
		{perr.Authorizationf("revoked"), AuthFailure},
		{perr.Wrap(errors.New("x"), perr.ErrorCodeAuthorization, "wrapped"), AuthFailure},
		{perr.Transientf("timeout"), TransientFailure},
		{errors.New("plain"), TransientFailure},
	}
	for _, tc := range cases {
		if got := Classify[string](tc.err).Kind; got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
