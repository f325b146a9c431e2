package service

import (
	"slices"
	"sync"
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/core/scheduler"
	"rollcall/internal/services/checks/domain"
)

// run tracks one scheduler run for the http surface. Sink callbacks come from
// the scheduler goroutine, readers from request goroutines
type run struct {
	mu   sync.Mutex
	snap domain.Snapshot
	sess map[string]domain.SessionView

	results any
	phase   func() scheduler.Phase
	stop    func()
	done    chan struct{}
}

func newRun(id string, kind domain.Kind, in domain.Input, now time.Time) *run {
	return &run{
		snap: domain.Snapshot{ID: id, Kind: kind, Input: in, Total: in.Scheduled, StartedAt: now},
		sess: map[string]domain.SessionView{},
		done: make(chan struct{}),
	}
}

func (r *run) snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.snap
	switch {
	case s.FinishedAt != nil:
		s.Phase = scheduler.Completed.String()
	case r.phase != nil:
		s.Phase = r.phase().String()
	default:
		s.Phase = scheduler.Initializing.String()
	}
	s.Sessions = make([]domain.SessionView, 0, len(r.sess))
	for _, v := range r.sess {
		s.Sessions = append(s.Sessions, v)
	}
	slices.SortFunc(s.Sessions, func(a, b domain.SessionView) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return s
}

func (r *run) update(fn func(s *domain.Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.snap)
}

func (r *run) progress(checked, total int) {
	r.update(func(s *domain.Snapshot) {
		s.Checked, s.Total = checked, total
		s.Waiting, s.WaitedSeconds, s.NextEligibleAt = false, 0, nil
	})
}

func (r *run) outcomes(n int) {
	r.update(func(s *domain.Snapshot) { s.Outcomes += n })
}

func (r *run) credentialState(c credential.Credential, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := domain.SessionView{Name: c.ID, State: c.State, ErrorCount: c.ErrorCount, TotalChecks: c.TotalChecks, LastError: c.LastError}
	r.sess[c.ID] = v
	if err != nil && c.State.Terminal() {
		r.snap.LastError = c.ID + ": " + err.Error()
	}
}

func (r *run) waiting(waited time.Duration, next time.Time) {
	r.update(func(s *domain.Snapshot) {
		s.Waiting = true
		s.WaitedSeconds = int(waited / time.Second)
		s.NextEligibleAt = &next
	})
}

func (r *run) logLine(msg string) {
	r.update(func(s *domain.Snapshot) { s.LastLog = msg })
}

func (r *run) failed(err error) {
	r.update(func(s *domain.Snapshot) { s.LastError = err.Error() })
}

func (r *run) report(checked, total int, stopped, exhausted bool, err error) {
	r.update(func(s *domain.Snapshot) {
		s.Checked, s.Total = checked, total
		s.Stopped, s.Exhausted = stopped, exhausted
		s.Waiting, s.NextEligibleAt = false, nil
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

func (r *run) finish(results any, now time.Time) {
	r.mu.Lock()
	r.results = results
	r.snap.FinishedAt = &now
	r.mu.Unlock()
	close(r.done)
}

func (r *run) result() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results, r.snap.FinishedAt != nil
}

// trackerSink feeds scheduler events into r
func trackerSink[O any](r *run) scheduler.Sink[O] {
	return scheduler.FuncSink[O]{
		Progress:        r.progress,
		Outcomes:        func(b []O) { r.outcomes(len(b)) },
		CredentialState: r.credentialState,
		Waiting:         r.waiting,
		Log:             r.logLine,
		RunComplete: func(rep scheduler.Report[O]) {
			r.report(rep.Checked, rep.Total, rep.Stopped, rep.Exhausted, rep.Err)
		},
	}
}
