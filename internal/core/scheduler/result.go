package scheduler

import (
	"context"

	"rollcall/internal/core/credential"
	perr "rollcall/internal/platform/errors"
)

// SubBatch is the slice of work handed to one credential for one probe
type SubBatch struct {
	Seq   int
	Items []string
	// ContactBase is the first client side contact id for this batch. Ids are
	// unique within a run
	ContactBase int64
}

// Kind tags a probe Result
type Kind uint8

const (
	// Success carries the confirmed outcomes of a probe
	Success Kind = iota
	// AuthFailure means the credential was rejected; it is terminal for the run
	AuthFailure
	// TransientFailure is any other failure; the items are requeued
	TransientFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthFailure:
		return "auth_failure"
	default:
		return "transient_failure"
	}
}

// Result is the outcome of one probe
type Result[O any] struct {
	Kind     Kind
	Outcomes []O
	Err      error
}

// Ok is a successful result
func Ok[O any](outcomes []O) Result[O] { return Result[O]{Kind: Success, Outcomes: outcomes} }

// Classify maps a probe error onto a result. Authorization coded errors are
// AuthFailure, everything else is TransientFailure
func Classify[O any](err error) Result[O] {
	switch {
	case err == nil:
		return Result[O]{Kind: Success}
	case perr.IsCode(err, perr.ErrorCodeAuthorization):
		return Result[O]{Kind: AuthFailure, Err: err}
	default:
		return Result[O]{Kind: TransientFailure, Err: err}
	}
}

// Prober is the remote capability a run drives. Implementations must be safe
// for concurrent use across distinct credentials
type Prober[O any] interface {
	Connect(ctx context.Context, c credential.Credential) error
	IsAuthorized(ctx context.Context, c credential.Credential) (bool, error)
	Probe(ctx context.Context, c credential.Credential, b SubBatch) Result[O]
	Disconnect(ctx context.Context, c credential.Credential)
}
