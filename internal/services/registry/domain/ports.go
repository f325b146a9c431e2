package domain

import (
	"context"
	"io"
)

// ServicePort is the registry surface exposed over http
type ServicePort interface {
	List(ctx context.Context, limit, offset int) (Page, error)
	Contains(ctx context.Context, phone string) (bool, error)
	Import(ctx context.Context, in ImportInput) (ImportResult, error)
	Remove(ctx context.Context, in RemoveInput) (int, error)
	Export(ctx context.Context, w io.Writer) (int, error)
	ExportFile(ctx context.Context) (FileResult, error)
	ImportFile(ctx context.Context) (ImportResult, error)
}

// RunPort is what the run orchestrator needs from the registry
type RunPort interface {
	// Exclude returns a membership test over a snapshot of the registry
	Exclude(ctx context.Context) (func(string) bool, error)
	// Append records confirmed numbers for runID and returns how many were new
	Append(ctx context.Context, runID string, phones []string) (int, error)
}
