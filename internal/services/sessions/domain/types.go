// Package domain holds the session management types
package domain

import (
	"time"

	"rollcall/internal/core/credential"
)

// Session is a persisted credential plus its backing file
type Session struct {
	Name            string           `json:"name"`
	FilePath        string           `json:"file_path"`
	Active          bool             `json:"active"`
	CooldownSeconds int              `json:"cooldown"`
	BatchSize       int              `json:"batch_size"`
	ErrorCount      int              `json:"error_count"`
	TotalChecks     int              `json:"total_checks"`
	State           credential.State `json:"state"`
	LastUsedAt      *time.Time       `json:"last_used_at,omitempty"`
	LastError       string           `json:"last_error,omitempty"`

	// FileMissing is set when FilePath no longer exists on disk
	FileMissing bool `json:"file_missing"`
}

// Credential converts s into a schedulable credential. Persisted values are clamped
func (s Session) Credential() *credential.Credential {
	c := &credential.Credential{
		ID:          s.Name,
		FilePath:    s.FilePath,
		Cooldown:    time.Duration(s.CooldownSeconds) * time.Second,
		BatchSize:   s.BatchSize,
		ErrorCount:  s.ErrorCount,
		TotalChecks: s.TotalChecks,
		State:       credential.ParseState(string(s.State)),
		LastError:   s.LastError,
	}
	if s.LastUsedAt != nil {
		c.LastUsedAt = *s.LastUsedAt
	}
	c.Clamp()
	return c
}

// Health is the part of a session a run writes back
type Health struct {
	Name        string
	State       credential.State
	ErrorCount  int
	TotalChecks int
	LastUsedAt  *time.Time
	LastError   string
}

// HealthOf extracts the persistable health of c. Busy is never persisted
func HealthOf(c credential.Credential) Health {
	st := c.State
	if st == credential.Busy {
		st = credential.Idle
	}
	h := Health{Name: c.ID, State: st, ErrorCount: c.ErrorCount, TotalChecks: c.TotalChecks, LastError: c.LastError}
	if !c.LastUsedAt.IsZero() {
		t := c.LastUsedAt
		h.LastUsedAt = &t
	}
	return h
}

// DiscoverResult summarizes a directory scan
type DiscoverResult struct {
	Added   []string `json:"added"`
	Known   int      `json:"known"`
	Moved   []string `json:"moved"`
	Missing []string `json:"missing"`
}

// UpdateInput edits a session's settings. Nil fields are left alone
type UpdateInput struct {
	Cooldown  *int  `json:"cooldown,omitempty" validate:"omitempty,min=0,max=3600"`
	BatchSize *int  `json:"batch_size,omitempty" validate:"omitempty,min=1,max=100"`
	Active    *bool `json:"active,omitempty"`
}

// RemoveInput names sessions to remove in one call
type RemoveInput struct {
	Names      []string `json:"names" validate:"required,min=1,dive,required"`
	DeleteFile bool     `json:"delete_file"`
}

// RemoveResult reports a batch removal
type RemoveResult struct {
	Removed      []string `json:"removed"`
	FilesDeleted int      `json:"files_deleted"`
}
