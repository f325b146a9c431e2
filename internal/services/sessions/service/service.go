// Package service manages session files and their persisted settings
package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/core/pool"
	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/services/sessions/domain"
	"rollcall/internal/services/sessions/repo"
)

// Service is the sessions contract
type Service interface {
	domain.ServicePort
	domain.RunPort
}

// Config carries the sessions knobs
type Config struct {
	Dir              string
	Glob             string
	DefaultCooldown  time.Duration
	DefaultBatchSize int
}

// Svc implements Service
type Svc struct {
	DB     repokit.TxRunner
	Repo   repokit.Binder[repo.Repo]
	Conn   pool.Connector
	config Config
	log    logger.Logger
}

var (
	statFile   = os.Stat
	removeFile = os.Remove
)

// New constructs the sessions service. conn is used for re-authorization
func New(db repokit.TxRunner, r repokit.Binder[repo.Repo], conn pool.Connector, cfg Config) *Svc {
	if db == nil {
		panic("sessions.Service requires a non nil TxRunner")
	}
	if cfg.Dir == "" {
		cfg.Dir = "./sessions"
	}
	if cfg.Glob == "" {
		cfg.Glob = "*.session"
	}
	if cfg.DefaultCooldown < 0 {
		cfg.DefaultCooldown = credential.DefaultCooldown
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = credential.DefaultBatchSize
	}
	return &Svc{DB: db, Repo: r, Conn: conn, config: cfg, log: *logger.Named("sessions")}
}

func (s *Svc) repo() repo.Repo { return s.Repo.Bind(s.DB) }

// List returns every session and flags the ones whose file is gone
func (s *Svc) List(ctx context.Context) ([]domain.Session, error) {
	out, err := s.repo().List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].FileMissing = !fileExists(out[i].FilePath)
	}
	return out, nil
}

// Get returns one session
func (s *Svc) Get(ctx context.Context, name string) (domain.Session, error) {
	out, err := s.repo().Get(ctx, name)
	if err != nil {
		return out, err
	}
	out.FileMissing = !fileExists(out.FilePath)
	return out, nil
}

// Update validates and applies new settings
func (s *Svc) Update(ctx context.Context, name string, in domain.UpdateInput) (domain.Session, error) {
	cur, err := s.repo().Get(ctx, name)
	if err != nil {
		return cur, err
	}

	set := credential.Settings{CooldownSeconds: cur.CooldownSeconds, BatchSize: cur.BatchSize}
	if in.Cooldown != nil {
		set.CooldownSeconds = *in.Cooldown
	}
	if in.BatchSize != nil {
		set.BatchSize = *in.BatchSize
	}
	active := cur.Active
	if in.Active != nil {
		active = *in.Active
	}
	if err := set.Validate(); err != nil {
		return cur, err
	}

	if err := s.repo().UpdateSettings(ctx, name, set.CooldownSeconds, set.BatchSize, active); err != nil {
		return cur, err
	}
	s.log.Info().Str("session", name).Int("cooldown_s", set.CooldownSeconds).Int("batch_size", set.BatchSize).Bool("active", active).Msg("session settings updated")
	return s.Get(ctx, name)
}

// Remove deletes sessions and, when asked, their files
func (s *Svc) Remove(ctx context.Context, in domain.RemoveInput) (domain.RemoveResult, error) {
	var out domain.RemoveResult
	if len(in.Names) == 0 {
		return out, perr.WithField(perr.InvalidArgf("no session names given"), "names")
	}

	paths := map[string]string{}
	if in.DeleteFile {
		list, err := s.repo().List(ctx)
		if err != nil {
			return out, err
		}
		for _, ss := range list {
			paths[ss.Name] = ss.FilePath
		}
	}

	removed, err := s.repo().Delete(ctx, in.Names)
	if err != nil {
		return out, err
	}
	out.Removed = removed

	for _, name := range removed {
		p := paths[name]
		if p == "" {
			continue
		}
		if err := removeFile(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("session", name).Str("path", p).Msg("session file delete failed")
			continue
		}
		out.FilesDeleted++
	}
	s.log.Info().Strs("sessions", removed).Int("files_deleted", out.FilesDeleted).Msg("sessions removed")
	return out, nil
}

// PurgeInvalid removes every Error or Unauthorized session and deletes its file
func (s *Svc) PurgeInvalid(ctx context.Context) (domain.RemoveResult, error) {
	list, err := s.repo().List(ctx)
	if err != nil {
		return domain.RemoveResult{}, err
	}
	var names []string
	for _, ss := range list {
		if ss.State.Terminal() {
			names = append(names, ss.Name)
		}
	}
	if len(names) == 0 {
		return domain.RemoveResult{Removed: []string{}}, nil
	}
	return s.Remove(ctx, domain.RemoveInput{Names: names, DeleteFile: true})
}

// ResetError moves an Error session back to Idle. Counters are kept
func (s *Svc) ResetError(ctx context.Context, name string) (domain.Session, error) {
	cur, err := s.repo().Get(ctx, name)
	if err != nil {
		return cur, err
	}
	c := cur.Credential()
	if !c.ResetError() {
		return cur, perr.Conflictf("session %s is %s, only error sessions can be reset", name, c.State)
	}
	if err := s.repo().SaveHealth(ctx, domain.HealthOf(c.Clone())); err != nil {
		return cur, err
	}
	return s.Get(ctx, name)
}

// Reauthorize reconnects a session and records whether it is still logged in
func (s *Svc) Reauthorize(ctx context.Context, name string) (domain.Session, error) {
	if s.Conn == nil {
		return domain.Session{}, perr.Unavailablef("no gateway configured")
	}
	cur, err := s.repo().Get(ctx, name)
	if err != nil {
		return cur, err
	}
	c := cur.Credential()
	st := pool.Reauthorize(ctx, s.Conn, c)
	s.Conn.Disconnect(context.WithoutCancel(ctx), c.Clone())
	if err := s.repo().SaveHealth(ctx, domain.HealthOf(c.Clone())); err != nil {
		return cur, err
	}
	s.log.Info().Str("session", name).Str("state", string(st)).Msg("session reauthorized")
	return s.Get(ctx, name)
}

// Credentials returns the active sessions whose files exist
func (s *Svc) Credentials(ctx context.Context) ([]*credential.Credential, error) {
	list, err := s.repo().List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*credential.Credential
	for _, ss := range list {
		if !ss.Active {
			continue
		}
		if !fileExists(ss.FilePath) {
			s.log.Warn().Str("session", ss.Name).Str("path", ss.FilePath).Msg("session file missing, skipped")
			continue
		}
		out = append(out, ss.Credential())
	}
	return out, nil
}

// SaveHealth persists run results in one transaction. Sessions removed during
// the run are skipped
func (s *Svc) SaveHealth(ctx context.Context, creds []credential.Credential) error {
	return repokit.WithTx(ctx, s.DB, func(q repokit.Queryer) error {
		r := s.Repo.Bind(q)
		for _, c := range creds {
			err := r.SaveHealth(ctx, domain.HealthOf(c))
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := statFile(p)
	return err == nil && !st.IsDir()
}
