// Package service orchestrates check runs: it prepares the worklist, builds the
// pool from persisted sessions, runs the scheduler and routes its events
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/core/credential"
	"rollcall/internal/core/phone"
	"rollcall/internal/core/pool"
	"rollcall/internal/core/scheduler"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	actdom "rollcall/internal/services/activity/domain"
	"rollcall/internal/services/checks/domain"
	regdom "rollcall/internal/services/registry/domain"
	sessdom "rollcall/internal/services/sessions/domain"

	"github.com/google/uuid"
)

// Deps are the ports a run is wired to
type Deps struct {
	Sessions sessdom.RunPort
	Registry regdom.RunPort
	Activity actdom.WriterPort

	Registration scheduler.Prober[string]
	Presence     scheduler.Prober[activity.Record]

	// Lease guards the session pool across processes; nil skips it
	Lease Lease
}

// Lease is a cross process claim on the session pool, held for one run
type Lease interface {
	Claim(ctx context.Context, runID string) error
	Keep(ctx context.Context, runID string) (stop func())
	Release(ctx context.Context, runID string) error
}

// Config for the run orchestrator
type Config struct {
	Scheduler scheduler.Config
	// KeepRuns bounds how many finished runs stay queryable
	KeepRuns int
}

// Svc implements domain.ServicePort. One run is active at a time since runs
// share the session pool
type Svc struct {
	deps Deps
	cfg  Config
	log  logger.Logger

	mu     sync.Mutex
	runs   map[string]*run
	order  []string
	active *run
	busy   bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// New constructs the orchestrator
func New(deps Deps, cfg Config) *Svc {
	if cfg.KeepRuns <= 0 {
		cfg.KeepRuns = 20
	}
	base, cancel := context.WithCancel(context.Background())
	return &Svc{
		deps:   deps,
		cfg:    cfg,
		log:    *logger.Named("checks"),
		runs:   map[string]*run{},
		base:   base,
		cancel: cancel,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Close stops every active run and waits for them to finish
func (s *Svc) Close() {
	s.cancel()
	s.wg.Wait()
}

// Start admits a run and returns its first snapshot. The run continues in the background
func (s *Svc) Start(ctx context.Context, in domain.StartInput) (domain.Snapshot, error) {
	if in.Kind != domain.Registration && in.Kind != domain.Activity {
		return domain.Snapshot{}, perr.WithField(perr.InvalidArgf("kind must be registration or activity"), "kind")
	}
	if err := s.reserve(); err != nil {
		return domain.Snapshot{}, err
	}
	started := false
	defer func() {
		if !started {
			s.unreserve()
		}
	}()

	var exclude func(string) bool
	if in.Kind == domain.Registration && !in.IncludeRegistered && s.deps.Registry != nil {
		ex, err := s.deps.Registry.Exclude(ctx)
		if err != nil {
			return domain.Snapshot{}, err
		}
		exclude = ex
	}
	text := in.Text
	if len(in.Numbers) > 0 {
		text += "\n" + strings.Join(in.Numbers, "\n")
	}
	parsed := phone.ParseText(text, exclude)
	input := domain.Input{
		Total:      parsed.Total,
		Invalid:    parsed.Invalid,
		Duplicates: parsed.Duplicates,
		Excluded:   parsed.Excluded,
		Scheduled:  len(parsed.Numbers),
	}
	if input.Scheduled == 0 {
		return domain.Snapshot{Input: input}, perr.WithField(perr.InvalidArgf("no numbers left to check out of %d given", input.Total), "numbers")
	}

	creds, err := s.deps.Sessions.Credentials(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(creds) == 0 {
		return domain.Snapshot{}, perr.PoolExhaustedf("no active session with a session file")
	}

	if (in.Kind == domain.Registration && s.deps.Registration == nil) ||
		(in.Kind == domain.Activity && s.deps.Presence == nil) {
		return domain.Snapshot{}, perr.Unavailablef("%s checks are not configured", in.Kind)
	}

	id := s.newID()
	if s.deps.Lease != nil {
		if err := s.deps.Lease.Claim(ctx, id); err != nil {
			return domain.Snapshot{}, err
		}
	}

	r := newRun(id, in.Kind, input, s.now())
	// tracked before launch so a run that ends at once still releases the slot
	started = true
	s.track(r)
	switch in.Kind {
	case domain.Registration:
		launch(s, r, parsed.Numbers, creds, s.deps.Registration, s.appendRegistry(r), noLeftovers[string], registrationResults)
	case domain.Activity:
		launch(s, r, parsed.Numbers, creds, s.deps.Presence, s.writeActivity(r), s.failLeftovers(r, parsed.Numbers), activityResults)
	}

	s.log.Info().
		Str("run_id", r.snap.ID).
		Str("kind", string(in.Kind)).
		Int("scheduled", input.Scheduled).
		Int("excluded", input.Excluded).
		Int("sessions", len(creds)).
		Msg("run started")
	return r.snapshot(), nil
}

// launch wires sinks around a scheduler for r and runs it in the background
func launch[O any](
	s *Svc,
	r *run,
	items []string,
	creds []*credential.Credential,
	prober scheduler.Prober[O],
	persist func(context.Context, []O) error,
	leftovers func(context.Context, scheduler.Report[O]) []O,
	results func([]O) any,
) {
	id := r.snap.ID
	ctx := logger.WithRun(s.base, id)
	log := logger.C(ctx).With().Str("component", "checks").Str("kind", string(r.snap.Kind)).Logger()

	p := pool.New(creds...)
	persistSink := scheduler.FuncSink[O]{
		Outcomes: func(batch []O) {
			if err := persist(context.WithoutCancel(ctx), batch); err != nil {
				log.Warn().Err(err).Int("outcomes", len(batch)).Msg("persist outcomes failed")
				r.failed(err)
			}
		},
	}
	sched := scheduler.New(s.cfg.Scheduler, p, prober, scheduler.MultiSink[O]{
		scheduler.LogSink[O]{Log: &log},
		trackerSink[O](r),
		persistSink,
	})

	r.mu.Lock()
	r.phase, r.stop = sched.Phase, sched.Stop
	r.mu.Unlock()

	keep := func() {}
	if s.deps.Lease != nil {
		keep = s.deps.Lease.Keep(ctx, id)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		rep, _ := sched.Run(ctx, items)
		extra := leftovers(context.WithoutCancel(ctx), rep)
		if len(extra) > 0 {
			r.outcomes(len(extra))
		}

		if err := s.deps.Sessions.SaveHealth(context.WithoutCancel(ctx), p.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("save session health failed")
		}
		keep()
		if s.deps.Lease != nil {
			if err := s.deps.Lease.Release(context.WithoutCancel(ctx), id); err != nil {
				log.Warn().Err(err).Msg("release run lease failed")
			}
		}
		s.release(r)
		r.finish(results(append(rep.Outcomes, extra...)), s.now())
	}()
}

func (s *Svc) appendRegistry(r *run) func(context.Context, []string) error {
	return func(ctx context.Context, batch []string) error {
		if s.deps.Registry == nil {
			return nil
		}
		_, err := s.deps.Registry.Append(ctx, r.snap.ID, batch)
		return err
	}
}

func (s *Svc) writeActivity(r *run) func(context.Context, []activity.Record) error {
	return func(ctx context.Context, batch []activity.Record) error {
		if s.deps.Activity == nil {
			return nil
		}
		return s.deps.Activity.Write(ctx, r.snap.ID, batch)
	}
}

// failLeftovers records check_failed for every number an exhausted run never reached
func (s *Svc) failLeftovers(r *run, items []string) func(context.Context, scheduler.Report[activity.Record]) []activity.Record {
	return func(ctx context.Context, rep scheduler.Report[activity.Record]) []activity.Record {
		if !rep.Exhausted {
			return nil
		}
		seen := make(map[string]struct{}, len(rep.Outcomes))
		for _, rec := range rep.Outcomes {
			seen[rec.Phone] = struct{}{}
		}
		now := s.now()
		var out []activity.Record
		for _, it := range items {
			if _, ok := seen[it]; !ok {
				out = append(out, activity.Failed(it, now))
			}
		}
		if len(out) == 0 {
			return nil
		}
		if err := s.writeActivity(r)(ctx, out); err != nil {
			s.log.Warn().Err(err).Str("run_id", r.snap.ID).Int("records", len(out)).Msg("write check_failed records failed")
			r.failed(err)
		}
		return out
	}
}

func noLeftovers[O any](context.Context, scheduler.Report[O]) []O { return nil }

func registrationResults(out []string) any {
	if out == nil {
		return []string{}
	}
	return out
}

func activityResults(out []activity.Record) any {
	if out == nil {
		return []activity.Record{}
	}
	return out
}

func (s *Svc) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return perr.Conflictf("run %s is still in progress", s.active.snap.ID)
	}
	if s.busy {
		return perr.Conflictf("another run is starting")
	}
	s.busy = true
	return nil
}

func (s *Svc) unreserve() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Svc) track(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.active = r
	s.runs[r.snap.ID] = r
	s.order = append(s.order, r.snap.ID)
	s.evictLocked()
}

func (s *Svc) release(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == r {
		s.active = nil
	}
}

// evictLocked drops the oldest finished runs beyond KeepRuns
func (s *Svc) evictLocked() {
	for i := 0; len(s.order) > s.cfg.KeepRuns && i < len(s.order); {
		id := s.order[i]
		if r := s.runs[id]; r != s.active {
			if _, done := r.result(); done {
				delete(s.runs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				continue
			}
		}
		i++
	}
}

func (s *Svc) lookup(id string) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, perr.NotFoundf("run %s not found", id)
	}
	return r, nil
}

// Get returns a run's snapshot
func (s *Svc) Get(_ context.Context, id string) (domain.Snapshot, error) {
	r, err := s.lookup(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return r.snapshot(), nil
}

// List returns the tracked runs, newest first
func (s *Svc) List(context.Context) ([]domain.Snapshot, error) {
	s.mu.Lock()
	rs := make([]*run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		rs = append(rs, s.runs[s.order[i]])
	}
	s.mu.Unlock()

	out := make([]domain.Snapshot, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.snapshot())
	}
	return out, nil
}

// Stop asks a run to wind down. Outcomes of in flight probes are kept. Stopping a
// finished run is a no-op
func (s *Svc) Stop(_ context.Context, id string) (domain.Snapshot, error) {
	r, err := s.lookup(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	r.mu.Lock()
	stop := r.stop
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.log.Info().Str("run_id", id).Msg("run stop requested")
	return r.snapshot(), nil
}

// Results returns a finished run's outcomes
func (s *Svc) Results(_ context.Context, id string) (any, error) {
	r, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	res, done := r.result()
	if !done {
		return nil, perr.Conflictf("run %s has not finished", id)
	}
	return res, nil
}

// Wait blocks until the run finishes or ctx ends
func (s *Svc) Wait(ctx context.Context, id string) (domain.Snapshot, error) {
	r, err := s.lookup(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}
