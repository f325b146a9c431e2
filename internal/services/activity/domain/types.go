// Package domain holds the activity check storage types
package domain

import (
	"time"

	"rollcall/internal/core/activity"
)

// Row is a stored activity record tagged with the run that produced it
type Row struct {
	RunID string `json:"run_id"`
	activity.Record
	IsActive bool `json:"is_active"`
}

// Filter narrows record listings. Empty fields match everything
type Filter struct {
	RunID  string
	Status activity.Status
	Phone  string
	Limit  int
}

// StatusCount is one bucket of a summary
type StatusCount struct {
	Status activity.Status `json:"status"`
	Count  int             `json:"count"`
}

// Summary counts records per status, every status is present
type Summary struct {
	RunID    string        `json:"run_id,omitempty"`
	Total    int           `json:"total"`
	Active   int           `json:"active"`
	ByStatus []StatusCount `json:"by_status"`
	Latest   *time.Time    `json:"latest,omitempty"`
}
