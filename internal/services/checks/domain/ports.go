package domain

import "context"

// ServicePort is the run control surface
type ServicePort interface {
	Start(ctx context.Context, in StartInput) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	List(ctx context.Context) ([]Snapshot, error)
	Stop(ctx context.Context, id string) (Snapshot, error)
	// Results returns a finished run's outcomes: confirmed numbers or activity records
	Results(ctx context.Context, id string) (any, error)
}
