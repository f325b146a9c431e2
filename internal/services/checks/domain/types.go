// Package domain holds the check run types
package domain

import (
	"time"

	"rollcall/internal/core/credential"
)

// Kind selects what a run probes for
type Kind string

const (
	// Registration finds which numbers have an account
	Registration Kind = "registration"
	// Activity records every number's presence status
	Activity Kind = "activity"
)

// StartInput starts a run over Numbers and the numbers found in Text
type StartInput struct {
	Kind    Kind     `json:"kind" validate:"required,oneof=registration activity"`
	Numbers []string `json:"numbers,omitempty" validate:"omitempty,dive,required"`
	Text    string   `json:"text,omitempty"`

	// IncludeRegistered keeps numbers already in the registry. Registration runs skip them by default
	IncludeRegistered bool `json:"include_registered,omitempty"`
}

// Input is the admission tally of a run's numbers
type Input struct {
	Total      int `json:"total"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Excluded   int `json:"excluded"`
	Scheduled  int `json:"scheduled"`
}

// SessionView is the last seen state of a session during a run
type SessionView struct {
	Name        string           `json:"name"`
	State       credential.State `json:"state"`
	ErrorCount  int              `json:"error_count"`
	TotalChecks int              `json:"total_checks"`
	LastError   string           `json:"last_error,omitempty"`
}

// Snapshot is a point in time view of a run
type Snapshot struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Phase    string        `json:"phase"`
	Input    Input         `json:"input"`
	Checked  int           `json:"checked"`
	Total    int           `json:"total"`
	Outcomes int           `json:"outcomes"`
	Sessions []SessionView `json:"sessions"`

	Waiting        bool       `json:"waiting"`
	WaitedSeconds  int        `json:"waited_seconds,omitempty"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty"`

	LastLog    string     `json:"last_log,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Stopped    bool       `json:"stopped"`
	Exhausted  bool       `json:"exhausted"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the run has finished
func (s Snapshot) Done() bool { return s.FinishedAt != nil }
