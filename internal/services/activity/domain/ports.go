package domain

import (
	"context"

	"rollcall/internal/core/activity"
)

// WriterPort stores activity records for a run
type WriterPort interface {
	Write(ctx context.Context, runID string, recs []activity.Record) error
}

// QueryPort reads activity records back
type QueryPort interface {
	Records(ctx context.Context, f Filter) ([]Row, error)
	Summary(ctx context.Context, runID string) (Summary, error)
}
