// Package domain holds the confirmed number registry types
package domain

import (
	"time"

	"rollcall/internal/core/phone"
)

// Entry is one confirmed number
type Entry struct {
	Phone   string    `json:"phone"`
	RunID   string    `json:"run_id,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Page is a slice of the registry in insertion order
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// ImportInput carries raw text, any number of whitespace separated numbers per line
type ImportInput struct {
	Text string `json:"text" validate:"required"`
}

// ImportResult reports a text or file import
type ImportResult struct {
	phone.Import
	Added int `json:"added"`
}

// RemoveInput names numbers to drop from the registry
type RemoveInput struct {
	Phones []string `json:"phones" validate:"required,min=1,dive,required"`
}

// FileResult reports a flat file export or import
type FileResult struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}
