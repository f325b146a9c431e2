package scheduler

import (
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/platform/logger"
)

// LogSink mirrors run events to a zerolog logger
type LogSink[O any] struct {
	Log *logger.Logger
}

func (l LogSink[O]) OnProgress(checked, total int) {
	l.Log.Debug().Int("checked", checked).Int("total", total).Msg("progress")
}

func (l LogSink[O]) OnOutcomes(batch []O) {
	l.Log.Debug().Int("outcomes", len(batch)).Msg("batch confirmed")
}

func (l LogSink[O]) OnCredentialState(c credential.Credential, err error) {
	ev := l.Log.Info()
	switch {
	case c.State.Terminal():
		ev = l.Log.Warn().Err(err)
	case c.State == credential.Busy:
		ev = l.Log.Debug()
	}
	ev.Str("session", c.ID).
		Str("state", string(c.State)).
		Int("error_count", c.ErrorCount).
		Int("total_checks", c.TotalChecks).
		Msg("session state")
}

func (l LogSink[O]) OnWaiting(waited time.Duration, next time.Time) {
	l.Log.Info().
		Dur("waited", waited).
		Time("next_eligible", next).
		Msg("all sessions cooling down, still waiting")
}

func (l LogSink[O]) OnLog(msg string) { l.Log.Info().Msg(msg) }

func (l LogSink[O]) OnRunComplete(r Report[O]) {
	ev := l.Log.Info()
	if r.Err != nil {
		ev = l.Log.Warn().Err(r.Err)
	}
	ev.Int("checked", r.Checked).
		Int("total", r.Total).
		Int("outcomes", len(r.Outcomes)).
		Bool("stopped", r.Stopped).
		Bool("exhausted", r.Exhausted).
		Dur("took", r.Finished.Sub(r.Started)).
		Msg("run complete")
}
