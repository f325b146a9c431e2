package gateway

import (
	"context"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/core/credential"
	"rollcall/internal/core/phone"
	"rollcall/internal/core/pool"
	"rollcall/internal/core/scheduler"
)

// sessionOps is the connect and authorization half shared by both probers
type sessionOps struct{ c *Client }

func (s sessionOps) Connect(ctx context.Context, cred credential.Credential) error {
	return s.c.Connect(ctx, cred.ID, cred.FilePath)
}

func (s sessionOps) IsAuthorized(ctx context.Context, cred credential.Credential) (bool, error) {
	return s.c.IsAuthorized(ctx, cred.ID)
}

func (s sessionOps) Disconnect(ctx context.Context, cred credential.Credential) {
	s.c.Disconnect(ctx, cred.ID)
}

// NewConnector returns the session lifecycle half of the gateway, used for
// pool warm up and re-authorization outside a run
func NewConnector(c *Client) pool.Connector { return sessionOps{c: c} }

func contacts(b scheduler.SubBatch) []Contact {
	out := make([]Contact, len(b.Items))
	for i, it := range b.Items {
		out[i] = Contact{ClientID: b.ContactBase + int64(i), Phone: it}
	}
	return out
}

// matched indexes the import result by the batch item it answers
func matched(b scheduler.SubBatch, imported []Imported) map[string]Imported {
	byID := make(map[int64]string, len(b.Items))
	for i, it := range b.Items {
		byID[b.ContactBase+int64(i)] = it
	}
	out := make(map[string]Imported, len(imported))
	for _, im := range imported {
		if it, ok := byID[im.ClientID]; ok {
			out[it] = im
			continue
		}
		if n := phone.Normalize(im.Phone); n != "" {
			out[n] = im
		}
	}
	return out
}

// RegistrationProber confirms which numbers have an account. Outcomes are the
// confirmed numbers
type RegistrationProber struct{ sessionOps }

// NewRegistrationProber wraps c
func NewRegistrationProber(c *Client) *RegistrationProber {
	return &RegistrationProber{sessionOps{c}}
}

// Probe implements scheduler.Prober
func (p *RegistrationProber) Probe(ctx context.Context, cred credential.Credential, b scheduler.SubBatch) scheduler.Result[string] {
	imported, err := p.c.ImportContacts(ctx, cred.ID, contacts(b), false)
	if err != nil {
		return scheduler.Classify[string](err)
	}
	hits := matched(b, imported)
	var out []string
	for _, it := range b.Items {
		if _, ok := hits[it]; ok {
			out = append(out, it)
		}
	}
	return scheduler.Ok(out)
}

// ActivityProber reports the activity of every number in a batch, registered or not
type ActivityProber struct {
	sessionOps
	now func() time.Time
}

// NewActivityProber wraps c
func NewActivityProber(c *Client) *ActivityProber {
	return &ActivityProber{sessionOps: sessionOps{c}, now: time.Now}
}

// Probe implements scheduler.Prober
func (p *ActivityProber) Probe(ctx context.Context, cred credential.Credential, b scheduler.SubBatch) scheduler.Result[activity.Record] {
	imported, err := p.c.ImportContacts(ctx, cred.ID, contacts(b), true)
	if err != nil {
		return scheduler.Classify[activity.Record](err)
	}
	hits := matched(b, imported)
	now := p.now()
	out := make([]activity.Record, 0, len(b.Items))
	for _, it := range b.Items {
		if im, ok := hits[it]; ok {
			out = append(out, activity.FromUser(it, &im.User, now))
			continue
		}
		out = append(out, activity.FromUser(it, nil, now))
	}
	return scheduler.Ok(out)
}
