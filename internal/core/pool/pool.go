// Package pool holds the ordered set of credentials a run schedules against
package pool

import (
	"context"
	"time"

	"rollcall/internal/core/credential"
	perr "rollcall/internal/platform/errors"

	"golang.org/x/sync/errgroup"
)

// Connector is the part of the remote capability used to bring credentials up
type Connector interface {
	Connect(ctx context.Context, c credential.Credential) error
	IsAuthorized(ctx context.Context, c credential.Credential) (bool, error)
	Disconnect(ctx context.Context, c credential.Credential)
}

// Pool keeps credentials in insertion order. It is not safe for concurrent use;
// the scheduler owns it from a single goroutine
type Pool struct {
	creds []*credential.Credential
	byID  map[string]*credential.Credential
}

// New builds a pool; later duplicates of an id are ignored
func New(creds ...*credential.Credential) *Pool {
	p := &Pool{byID: make(map[string]*credential.Credential, len(creds))}
	for _, c := range creds {
		if c == nil {
			continue
		}
		if _, dup := p.byID[c.ID]; dup {
			continue
		}
		p.creds = append(p.creds, c)
		p.byID[c.ID] = c
	}
	return p
}

// Len is the number of credentials
func (p *Pool) Len() int { return len(p.creds) }

// Get returns the credential with id
func (p *Pool) Get(id string) (*credential.Credential, bool) {
	c, ok := p.byID[id]
	return c, ok
}

// Eligible returns the usable credentials at now in pool order
func (p *Pool) Eligible(now time.Time) []*credential.Credential {
	var out []*credential.Credential
	for _, c := range p.creds {
		if c.CanUse(now) {
			out = append(out, c)
		}
	}
	return out
}

// NextEligibleAt is the earliest moment an Idle credential comes off cooldown.
// ok is false when no credential is Idle
func (p *Pool) NextEligibleAt(now time.Time) (at time.Time, ok bool) {
	for _, c := range p.creds {
		if c.State != credential.Idle {
			continue
		}
		t := c.EligibleAt()
		if t.Before(now) {
			t = now
		}
		if !ok || t.Before(at) {
			at, ok = t, true
		}
	}
	return at, ok
}

// Exhausted reports whether every credential is Error or Unauthorized
func (p *Pool) Exhausted() bool {
	for _, c := range p.creds {
		if !c.State.Terminal() {
			return false
		}
	}
	return true
}

// Count returns how many credentials are in state s
func (p *Pool) Count(s credential.State) int {
	n := 0
	for _, c := range p.creds {
		if c.State == s {
			n++
		}
	}
	return n
}

// Snapshot copies every credential in pool order
func (p *Pool) Snapshot() []credential.Credential {
	out := make([]credential.Credential, len(p.creds))
	for i, c := range p.creds {
		out[i] = c.Clone()
	}
	return out
}

// InitOptions tune Initialize
type InitOptions struct {
	GroupSize int
	Pause     time.Duration
	// Observe sees every credential after its check, from the calling goroutine
	Observe func(c credential.Credential)
}

// Initialize connects and authorizes every non terminal credential, GroupSize at a
// time with Pause between groups. Credentials already in Error or Unauthorized
// are left alone. It returns the number of Idle credentials and a pool exhausted
// error when there are none
func (p *Pool) Initialize(ctx context.Context, conn Connector, o InitOptions) (int, error) {
	size := o.GroupSize
	if size <= 0 {
		size = 5
	}

	var pending []*credential.Credential
	for _, c := range p.creds {
		if c.State == credential.Busy {
			c.State = credential.Idle
		}
		if !c.State.Terminal() {
			pending = append(pending, c)
		}
	}

	for start := 0; start < len(pending); start += size {
		if start > 0 && o.Pause > 0 {
			select {
			case <-ctx.Done():
				return p.Count(credential.Idle), ctx.Err()
			case <-time.After(o.Pause):
			}
		}

		group := pending[start:min(start+size, len(pending))]
		var g errgroup.Group
		for _, c := range group {
			g.Go(func() error {
				check(ctx, conn, c)
				return nil
			})
		}
		_ = g.Wait()

		if o.Observe != nil {
			for _, c := range group {
				o.Observe(c.Clone())
			}
		}
	}

	idle := p.Count(credential.Idle)
	if idle == 0 {
		return 0, perr.PoolExhaustedf("no usable credential among %d", len(p.creds))
	}
	return idle, nil
}

// Reauthorize runs one connect and authorization check on c and returns its new state
func Reauthorize(ctx context.Context, conn Connector, c *credential.Credential) credential.State {
	c.State = credential.Idle
	c.LastError = ""
	check(ctx, conn, c)
	return c.State
}

// check writes only to c so group members can run concurrently
func check(ctx context.Context, conn Connector, c *credential.Credential) {
	snap := c.Clone()
	err := conn.Connect(ctx, snap)
	if err == nil {
		var ok bool
		ok, err = conn.IsAuthorized(ctx, snap)
		if err == nil && !ok {
			err = perr.Authorizationf("session %s is not authorized", c.ID)
		}
	}

	switch {
	case err == nil:
		c.State = credential.Idle
		c.LastError = ""
	case perr.IsCode(err, perr.ErrorCodeAuthorization):
		c.State = credential.Unauthorized
		c.LastError = err.Error()
		conn.Disconnect(context.WithoutCancel(ctx), snap)
	default:
		c.State = credential.Error
		c.ErrorCount++
		c.LastError = err.Error()
		conn.Disconnect(context.WithoutCancel(ctx), snap)
	}
}
