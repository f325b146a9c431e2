package domain

import (
	"context"

	"rollcall/internal/core/credential"
)

// ServicePort is the session management surface
type ServicePort interface {
	Discover(ctx context.Context) (DiscoverResult, error)
	List(ctx context.Context) ([]Session, error)
	Get(ctx context.Context, name string) (Session, error)
	Update(ctx context.Context, name string, in UpdateInput) (Session, error)
	Remove(ctx context.Context, in RemoveInput) (RemoveResult, error)
	PurgeInvalid(ctx context.Context) (RemoveResult, error)
	ResetError(ctx context.Context, name string) (Session, error)
	Reauthorize(ctx context.Context, name string) (Session, error)
}

// RunPort is what the run orchestrator needs from sessions
type RunPort interface {
	// Credentials returns the active sessions whose files exist, in name order
	Credentials(ctx context.Context) ([]*credential.Credential, error)
	// SaveHealth writes back state and counters after a run
	SaveHealth(ctx context.Context, creds []credential.Credential) error
}
