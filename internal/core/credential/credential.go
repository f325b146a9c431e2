// Package credential models one rate-limited session used to call the remote probe gateway
package credential

import (
	"time"

	perr "rollcall/internal/platform/errors"
)

// State is the health of a credential
type State string

const (
	// Idle is usable once its cooldown passes
	Idle State = "idle"
	// Busy has exactly one probe in flight
	Busy State = "busy"
	// Error failed a probe; it sits out the rest of the run
	Error State = "error"
	// Unauthorized was rejected by the remote service; only re-authorization clears it
	Unauthorized State = "unauthorized"
)

// Terminal reports whether s keeps the credential out for the rest of a run
func (s State) Terminal() bool { return s == Error || s == Unauthorized }

// ParseState maps a persisted value to a State. Busy and unknown values load as Idle
func ParseState(s string) State {
	switch State(s) {
	case Error:
		return Error
	case Unauthorized:
		return Unauthorized
	default:
		return Idle
	}
}

// Defaults and bounds for per credential settings
const (
	DefaultCooldown  = 180 * time.Second
	DefaultBatchSize = 10
	MinBatchSize     = 1
	MaxBatchSize     = 100
	MaxCooldown      = time.Hour
)

// Credential is one session. ID is the session name (its file base name)
type Credential struct {
	ID          string
	FilePath    string
	Cooldown    time.Duration
	BatchSize   int
	ErrorCount  int
	TotalChecks int
	LastUsedAt  time.Time
	State       State
	LastError   string
}

// New returns an Idle credential with default settings
func New(id, filePath string) *Credential {
	return &Credential{
		ID:        id,
		FilePath:  filePath,
		Cooldown:  DefaultCooldown,
		BatchSize: DefaultBatchSize,
		State:     Idle,
	}
}

// CanUse reports whether c is Idle and its cooldown since LastUsedAt has passed
func (c *Credential) CanUse(now time.Time) bool {
	if c.State != Idle {
		return false
	}
	return c.LastUsedAt.IsZero() || now.Sub(c.LastUsedAt) >= c.Cooldown
}

// EligibleAt is the earliest time c may be used, zero for terminal or busy credentials
func (c *Credential) EligibleAt() time.Time {
	if c.State != Idle {
		return time.Time{}
	}
	if c.LastUsedAt.IsZero() {
		return time.Unix(0, 0)
	}
	return c.LastUsedAt.Add(c.Cooldown)
}

// Clamp pulls persisted values back into range
func (c *Credential) Clamp() {
	c.BatchSize = ClampBatch(c.BatchSize)
	c.Cooldown = min(max(c.Cooldown, 0), MaxCooldown)
	c.ErrorCount = max(c.ErrorCount, 0)
	c.TotalChecks = max(c.TotalChecks, 0)
	if c.State == Busy {
		c.State = Idle
	}
}

// ClampBatch bounds n to MinBatchSize..MaxBatchSize
func ClampBatch(n int) int { return min(max(n, MinBatchSize), MaxBatchSize) }

// Settings are the operator editable knobs of a credential. Bounds live in Validate
type Settings struct {
	CooldownSeconds int `json:"cooldown"`
	BatchSize       int `json:"batch_size"`
}

// Validate rejects out of range settings with a configuration error naming the field
func (s Settings) Validate() error {
	switch {
	case s.CooldownSeconds < 0 || time.Duration(s.CooldownSeconds)*time.Second > MaxCooldown:
		return perr.WithField(perr.Configurationf("cooldown %ds out of range 0..%d", s.CooldownSeconds, int(MaxCooldown.Seconds())), "cooldown")
	case s.BatchSize < MinBatchSize || s.BatchSize > MaxBatchSize:
		return perr.WithField(perr.Configurationf("batch size %d out of range %d..%d", s.BatchSize, MinBatchSize, MaxBatchSize), "batch_size")
	}
	return nil
}

// Apply validates s and copies it onto c
func (c *Credential) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.Cooldown = time.Duration(s.CooldownSeconds) * time.Second
	c.BatchSize = s.BatchSize
	return nil
}

// Settings returns the current knobs
func (c *Credential) Settings() Settings {
	return Settings{CooldownSeconds: int(c.Cooldown / time.Second), BatchSize: c.BatchSize}
}

// ResetError moves an Error credential back to Idle. Other states are left alone
func (c *Credential) ResetError() bool {
	if c.State != Error {
		return false
	}
	c.State = Idle
	c.LastError = ""
	return true
}

// Clone returns a copy safe to hand outside the scheduler loop
func (c *Credential) Clone() Credential { return *c }
