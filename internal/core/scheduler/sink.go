package scheduler

import (
	"time"

	"rollcall/internal/core/credential"
)

// Report is the final tally of a run
type Report[O any] struct {
	Total     int
	Checked   int
	Outcomes  []O
	Stopped   bool
	Exhausted bool
	Started   time.Time
	Finished  time.Time
	Err       error
}

// Sink receives run events. Calls come from the scheduler's control goroutine,
// one at a time and in order
type Sink[O any] interface {
	OnProgress(checked, total int)
	OnOutcomes(batch []O)
	OnCredentialState(c credential.Credential, err error)
	OnWaiting(waited time.Duration, next time.Time)
	OnLog(msg string)
	OnRunComplete(r Report[O])
}

// FuncSink adapts optional funcs to a Sink
type FuncSink[O any] struct {
	Progress        func(checked, total int)
	Outcomes        func(batch []O)
	CredentialState func(c credential.Credential, err error)
	Waiting         func(waited time.Duration, next time.Time)
	Log             func(msg string)
	RunComplete     func(r Report[O])
}

func (f FuncSink[O]) OnProgress(checked, total int) {
	if f.Progress != nil {
		f.Progress(checked, total)
	}
}

func (f FuncSink[O]) OnOutcomes(batch []O) {
	if f.Outcomes != nil {
		f.Outcomes(batch)
	}
}

func (f FuncSink[O]) OnCredentialState(c credential.Credential, err error) {
	if f.CredentialState != nil {
		f.CredentialState(c, err)
	}
}

func (f FuncSink[O]) OnWaiting(waited time.Duration, next time.Time) {
	if f.Waiting != nil {
		f.Waiting(waited, next)
	}
}

func (f FuncSink[O]) OnLog(msg string) {
	if f.Log != nil {
		f.Log(msg)
	}
}

func (f FuncSink[O]) OnRunComplete(r Report[O]) {
	if f.RunComplete != nil {
		f.RunComplete(r)
	}
}

// MultiSink fans every event out to each sink in order
type MultiSink[O any] []Sink[O]

func (m MultiSink[O]) OnProgress(checked, total int) {
	for _, s := range m {
		s.OnProgress(checked, total)
	}
}

func (m MultiSink[O]) OnOutcomes(batch []O) {
	for _, s := range m {
		s.OnOutcomes(batch)
	}
}

func (m MultiSink[O]) OnCredentialState(c credential.Credential, err error) {
	for _, s := range m {
		s.OnCredentialState(c, err)
	}
}

func (m MultiSink[O]) OnWaiting(waited time.Duration, next time.Time) {
	for _, s := range m {
		s.OnWaiting(waited, next)
	}
}

func (m MultiSink[O]) OnLog(msg string) {
	for _, s := range m {
		s.OnLog(msg)
	}
}

func (m MultiSink[O]) OnRunComplete(r Report[O]) {
	for _, s := range m {
		s.OnRunComplete(r)
	}
}
