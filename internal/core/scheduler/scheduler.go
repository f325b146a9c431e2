// Package scheduler drives a worklist through a pool of rate limited credentials.
//
// One control goroutine owns the pool, the processed set and the outcomes.
// Probes run in their own goroutines, at most one per credential, and report
// back over a channel. Items are claimed before a probe and unclaimed and
// requeued when it fails.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/core/pool"
	"rollcall/internal/core/worklist"
	perr "rollcall/internal/platform/errors"
)

// Phase is the lifecycle position of a run
type Phase int32

const (
	Initializing Phase = iota
	Running
	Draining
	Completed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "completed"
	}
}

// Scheduler runs one worklist once. Build a new one per run
type Scheduler[O any] struct {
	cfg    Config
	pool   *pool.Pool
	prober Prober[O]
	sink   Sink[O]

	phase    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	now func() time.Time
}

// New builds a scheduler over p. A nil sink discards events
func New[O any](cfg Config, p *pool.Pool, prober Prober[O], sink Sink[O]) *Scheduler[O] {
	if sink == nil {
		sink = FuncSink[O]{}
	}
	return &Scheduler[O]{
		cfg:    cfg.withDefaults(),
		pool:   p,
		prober: prober,
		sink:   sink,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
}

// Phase reports where the run is
func (s *Scheduler[O]) Phase() Phase { return Phase(s.phase.Load()) }

// Stop asks the run to wind down. In flight probes finish and their outcomes are kept
func (s *Scheduler[O]) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

type done[O any] struct {
	id  string
	b   SubBatch
	res Result[O]
}

// run is the mutable state owned by the control goroutine
type run[O any] struct {
	rep       Report[O]
	processed worklist.Set
	inflight  int
	seq       int
	contact   int64
	results   chan done[O]
	waitFrom  time.Time
}

// Run initializes the pool and schedules items, which must already be prepared
// (normalized, deduped, filtered). It returns the final report; the error is the
// report's Err, set for pool exhaustion or context cancellation
func (s *Scheduler[O]) Run(ctx context.Context, items []string) (Report[O], error) {
	if !s.started.CompareAndSwap(false, true) {
		return Report[O]{}, perr.Conflictf("scheduler already ran")
	}
	r := &run[O]{
		rep:       Report[O]{Total: len(items), Started: s.now()},
		processed: worklist.NewSet(len(items)),
		results:   make(chan done[O], s.pool.Len()),
	}
	defer func() {
		s.phase.Store(int32(Completed))
		r.rep.Finished = s.now()
		s.sink.OnRunComplete(r.rep)
	}()

	s.phase.Store(int32(Initializing))
	s.sink.OnLog(fmt.Sprintf("initializing %d sessions", s.pool.Len()))
	initCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-initCtx.Done():
		}
	}()
	idle, err := s.pool.Initialize(initCtx, s.prober, pool.InitOptions{
		GroupSize: s.cfg.InitGroupSize,
		Pause:     s.cfg.InitPause,
		Observe:   func(c credential.Credential) { s.sink.OnCredentialState(c, lastErr(c)) },
	})
	cancel()
	if err != nil {
		r.rep.Err = err
		r.rep.Exhausted = perr.IsCode(err, perr.ErrorCodePoolExhausted)
		r.rep.Stopped = s.stopping(ctx)
		if r.rep.Stopped && ctx.Err() == nil {
			r.rep.Err = nil
		}
		return r.rep, r.rep.Err
	}
	s.sink.OnLog(fmt.Sprintf("%d of %d sessions ready", idle, s.pool.Len()))

	s.phase.Store(int32(Running))
	for chunk := range worklist.Chunks(items, r.processed, s.cfg.ChunkSize) {
		if !s.drainChunk(ctx, r, chunk) {
			break
		}
	}
	return r.rep, r.rep.Err
}

// drainChunk schedules one chunk until it is done, and reports whether the run continues
func (s *Scheduler[O]) drainChunk(ctx context.Context, r *run[O], chunk []string) bool {
	remaining := chunk
	var statusT *time.Timer
	defer func() {
		if statusT != nil {
			statusT.Stop()
		}
	}()

	for {
		if s.stopping(ctx) {
			s.drainInflight(r)
			r.rep.Stopped = true
			if ctx.Err() != nil {
				r.rep.Err = ctx.Err()
			}
			return false
		}
		if len(remaining) == 0 && r.inflight == 0 {
			return true
		}

		now := s.now()
		if len(remaining) > 0 {
			for _, c := range s.pool.Eligible(now) {
				if len(remaining) == 0 {
					break
				}
				remaining = s.dispatch(ctx, r, c, remaining)
				r.waitFrom = time.Time{}
			}
		}

		if len(remaining) > 0 && s.pool.Exhausted() {
			r.rep.Exhausted = true
			r.rep.Err = perr.PoolExhaustedf("all %d sessions are unusable, %d items left unchecked",
				s.pool.Len(), r.rep.Total-r.rep.Checked)
			s.sink.OnLog(r.rep.Err.Error())
			return false
		}

		var wakeT *time.Timer
		var wake, status <-chan time.Time
		if len(remaining) > 0 {
			if next, ok := s.pool.NextEligibleAt(s.now()); ok {
				if r.waitFrom.IsZero() {
					r.waitFrom = s.now()
					statusT = resetTimer(statusT, s.cfg.WaitStatusEvery)
					s.sink.OnWaiting(0, next)
				}
				wakeT = time.NewTimer(max(next.Sub(s.now()), 0))
				wake = wakeT.C
			}
		}
		if !r.waitFrom.IsZero() && statusT != nil {
			status = statusT.C
		}

		select {
		case d := <-r.results:
			remaining = s.settle(r, d, remaining)
		case <-wake:
		case <-status:
			next, _ := s.pool.NextEligibleAt(s.now())
			s.sink.OnWaiting(s.now().Sub(r.waitFrom), next)
			statusT.Reset(s.cfg.WaitStatusEvery)
		case <-s.stop:
		case <-ctx.Done():
		}
		if wakeT != nil {
			wakeT.Stop()
		}
	}
}

// dispatch claims up to the credential's batch size from the front of remaining
// and starts its probe
func (s *Scheduler[O]) dispatch(ctx context.Context, r *run[O], c *credential.Credential, remaining []string) []string {
	size := c.BatchSize
	if size <= 0 {
		size = s.cfg.DefaultBatchSize
	}
	n := min(size, len(remaining))
	items := make([]string, n)
	copy(items, remaining[:n])
	r.processed.Claim(items...)

	b := SubBatch{Seq: r.seq, Items: items, ContactBase: r.contact}
	r.seq++
	r.contact += int64(n)

	c.State = credential.Busy
	s.sink.OnCredentialState(c.Clone(), nil)
	r.inflight++
	go s.probe(ctx, c.Clone(), b, r.results)

	return remaining[n:]
}

// probe runs off the control goroutine and touches nothing but its arguments
func (s *Scheduler[O]) probe(ctx context.Context, c credential.Credential, b SubBatch, out chan<- done[O]) {
	res := Result[O]{Kind: TransientFailure}
	defer func() {
		if rec := recover(); rec != nil {
			res = Result[O]{Kind: TransientFailure, Err: perr.PanicErrf("probe panicked: %v", rec)}
		}
		out <- done[O]{id: c.ID, b: b, res: res}
	}()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProbeTimeout)
	defer cancel()

	ok, err := s.prober.IsAuthorized(pctx, c)
	switch {
	case err != nil:
		res = Classify[O](err)
	case !ok:
		res = Result[O]{Kind: AuthFailure, Err: perr.Authorizationf("session %s lost authorization", c.ID)}
	default:
		res = s.prober.Probe(pctx, c, b)
	}
}

// settle applies a probe result to the pool and the run tallies
func (s *Scheduler[O]) settle(r *run[O], d done[O], remaining []string) []string {
	r.inflight--
	c, ok := s.pool.Get(d.id)
	if !ok {
		return remaining
	}
	c.LastUsedAt = s.now()
	c.TotalChecks++

	switch d.res.Kind {
	case Success:
		c.State = credential.Idle
		c.LastError = ""
		r.rep.Outcomes = append(r.rep.Outcomes, d.res.Outcomes...)
		r.rep.Checked += len(d.b.Items)
		if len(d.res.Outcomes) > 0 {
			s.sink.OnOutcomes(d.res.Outcomes)
		}
		s.sink.OnProgress(r.rep.Checked, r.rep.Total)
	case AuthFailure:
		c.State = credential.Unauthorized
		c.LastError = errText(d.res.Err)
		r.processed.Unclaim(d.b.Items...)
		remaining = append(remaining, d.b.Items...)
		go s.disconnect(c.Clone())
	default:
		c.ErrorCount++
		c.State = credential.Error
		c.LastError = errText(d.res.Err)
		r.processed.Unclaim(d.b.Items...)
		remaining = append(remaining, d.b.Items...)
	}
	s.sink.OnCredentialState(c.Clone(), d.res.Err)
	return remaining
}

// disconnect drops a revoked session off the control goroutine, bounded by ProbeTimeout
func (s *Scheduler[O]) disconnect(c credential.Credential) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProbeTimeout)
	defer cancel()
	s.prober.Disconnect(ctx, c)
}

// drainInflight waits for every running probe and keeps what they found
func (s *Scheduler[O]) drainInflight(r *run[O]) {
	if r.inflight == 0 {
		return
	}
	s.phase.Store(int32(Draining))
	s.sink.OnLog(fmt.Sprintf("stopping, waiting for %d probes", r.inflight))
	for r.inflight > 0 {
		s.settle(r, <-r.results, nil)
	}
}

func (s *Scheduler[O]) stopping(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func resetTimer(t *time.Timer, d time.Duration) *time.Timer {
	if t == nil {
		return time.NewTimer(d)
	}
	t.Reset(d)
	return t
}

func lastErr(c credential.Credential) error {
	if c.LastError == "" {
		return nil
	}
	switch c.State {
	case credential.Unauthorized:
		return perr.Authorizationf("%s", c.LastError)
	default:
		return perr.Transientf("%s", c.LastError)
	}
}

func errText(err error) string {
	if err == nil {
		return "probe failed"
	}
	return err.Error()
}
