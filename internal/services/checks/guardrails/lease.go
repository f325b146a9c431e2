// Package guardrails keeps one run at a time across every process sharing the
// session pool. A lease row is claimed per run and kept alive while it runs;
// a crashed holder is reclaimed once its lease expires
package guardrails

import (
	"context"
	"fmt"
	"os"
	"time"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"
)

// Schema creates the lease table
const Schema = `
CREATE TABLE IF NOT EXISTS run_leases (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);`

// Migrate creates the lease table
func Migrate(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "migrate run_leases")
}

// Lease is a named, expiring claim in postgres
type Lease struct {
	db    repokit.TxRunner
	name  string
	owner string
	ttl   time.Duration
	log   logger.Logger
}

// New returns a lease on name. owner is suffixed with the pid
func New(db repokit.TxRunner, name, owner string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Lease{
		db:    db,
		name:  name,
		owner: fmt.Sprintf("%s:%d", owner, os.Getpid()),
		ttl:   ttl,
		log:   *logger.Named("guardrails"),
	}
}

// Owner is the id written into the lease row
func (l *Lease) Owner() string { return l.owner }

// Claim takes the lease for runID, or fails with a conflict naming the holder
func (l *Lease) Claim(ctx context.Context, runID string) error {
	var holder string
	err := l.db.Tx(ctx, func(q store.RowQuerier) error {
		_, err := store.Scalar[string](ctx, q, `
			INSERT INTO run_leases (name, owner, run_id, expires_at)
			VALUES ($1, $2, $3, now() + make_interval(secs => $4))
			ON CONFLICT (name) DO UPDATE
			   SET owner = EXCLUDED.owner, run_id = EXCLUDED.run_id,
			       claimed_at = now(), expires_at = EXCLUDED.expires_at
			 WHERE run_leases.expires_at <= now()
			RETURNING run_id`, l.name, l.owner, runID, l.ttl.Seconds())
		if err == nil {
			return nil
		}
		if !perr.IsCode(err, perr.ErrorCodeNotFound) {
			return perr.FromPostgres(err, "claim run lease")
		}
		holder, err = store.Scalar[string](ctx, q,
			`SELECT owner || ' (run ' || run_id || ')' FROM run_leases WHERE name = $1`, l.name)
		if err != nil {
			holder = "another process"
		}
		return nil
	})
	if err != nil {
		return err
	}
	if holder != "" {
		return perr.Conflictf("session pool is in use by %s", holder)
	}
	return nil
}

// Renew pushes the expiry out by the ttl. A lease taken over by someone else is a conflict
func (l *Lease) Renew(ctx context.Context, runID string) error {
	err := store.ExecOne(ctx, l.db, `
		UPDATE run_leases SET expires_at = now() + make_interval(secs => $4)
		 WHERE name = $1 AND owner = $2 AND run_id = $3`, l.name, l.owner, runID, l.ttl.Seconds())
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.Conflictf("run lease %s for run %s was lost", l.name, runID)
	}
	return perr.FromPostgres(err, "renew run lease")
}

// Release drops the lease if runID still holds it
func (l *Lease) Release(ctx context.Context, runID string) error {
	_, err := l.db.Exec(ctx,
		`DELETE FROM run_leases WHERE name = $1 AND owner = $2 AND run_id = $3`, l.name, l.owner, runID)
	return perr.FromPostgres(err, "release run lease")
}

// Keep renews the lease every third of its ttl until the returned stop is called
func (l *Lease) Keep(ctx context.Context, runID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(l.ttl / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Renew(ctx, runID); err != nil && ctx.Err() == nil {
					l.log.Warn().Err(err).Str("lease", l.name).Str("run_id", runID).Msg("renew run lease failed")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
