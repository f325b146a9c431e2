// Package service implements the confirmed number registry
package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"rollcall/internal/core/phone"
	"rollcall/internal/core/worklist"
	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/services/registry/domain"
	"rollcall/internal/services/registry/repo"
)

// Service is the registry contract
type Service interface {
	domain.ServicePort
	domain.RunPort
}

// Config carries the registry knobs
type Config struct {
	// FilePath is the flat file used for export and import interop
	FilePath string
	MaxPage  int
}

// Svc implements Service
type Svc struct {
	DB     repokit.TxRunner
	Repo   repokit.Binder[repo.Repo]
	config Config
	log    logger.Logger
}

// New constructs the registry service
func New(db repokit.TxRunner, r repokit.Binder[repo.Repo], cfg Config) *Svc {
	if db == nil {
		panic("registry.Service requires a non nil TxRunner")
	}
	if cfg.FilePath == "" {
		cfg.FilePath = "phone_register.txt"
	}
	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 1000
	}
	return &Svc{DB: db, Repo: r, config: cfg, log: *logger.Named("registry")}
}

func (s *Svc) repo() repo.Repo { return s.Repo.Bind(s.DB) }

// Load returns the registry as a set
func (s *Svc) Load(ctx context.Context) (worklist.Set, error) {
	all, err := s.repo().All(ctx)
	if err != nil {
		return nil, err
	}
	set := worklist.NewSet(len(all))
	set.Claim(all...)
	return set, nil
}

// Exclude snapshots the registry into a membership test
func (s *Svc) Exclude(ctx context.Context) (func(string) bool, error) {
	set, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return set.Has, nil
}

// Append normalizes phones and records the new ones
func (s *Svc) Append(ctx context.Context, runID string, phones []string) (int, error) {
	clean := worklist.Prepare(phones, nil)
	if len(clean) == 0 {
		return 0, nil
	}
	n, err := s.repo().Append(ctx, runID, clean)
	if err != nil {
		return 0, err
	}
	logger.C(ctx).Debug().Str("component", "registry").Int("given", len(phones)).Int("added", n).Msg("registry appended")
	return n, nil
}

// Contains reports whether phone, once normalized, is registered
func (s *Svc) Contains(ctx context.Context, p string) (bool, error) {
	n := phone.Normalize(p)
	if n == "" {
		return false, perr.WithField(perr.InvalidArgf("%q is not a phone number", p), "phone")
	}
	return s.repo().Contains(ctx, n)
}

// List pages through the registry in insertion order
func (s *Svc) List(ctx context.Context, limit, offset int) (domain.Page, error) {
	if limit <= 0 || limit > s.config.MaxPage {
		limit = s.config.MaxPage
	}
	offset = max(offset, 0)

	var out domain.Page
	err := repokit.WithTx(ctx, s.DB, func(q repokit.Queryer) error {
		r := s.Repo.Bind(q)
		total, err := r.Count(ctx)
		if err != nil {
			return err
		}
		entries, err := r.List(ctx, limit, offset)
		if err != nil {
			return err
		}
		out = domain.Page{Entries: entries, Total: total, Limit: limit, Offset: offset}
		return nil
	})
	if out.Entries == nil {
		out.Entries = []domain.Entry{}
	}
	return out, err
}

// Import parses text and registers every valid number not already known
func (s *Svc) Import(ctx context.Context, in domain.ImportInput) (domain.ImportResult, error) {
	exclude, err := s.Exclude(ctx)
	if err != nil {
		return domain.ImportResult{}, err
	}
	return s.importParsed(ctx, phone.ParseText(in.Text, exclude))
}

func (s *Svc) importParsed(ctx context.Context, parsed phone.Import) (domain.ImportResult, error) {
	out := domain.ImportResult{Import: parsed}
	if len(parsed.Numbers) == 0 {
		out.Numbers = []string{}
		return out, nil
	}
	n, err := s.repo().Append(ctx, "", parsed.Numbers)
	if err != nil {
		return out, err
	}
	out.Added = n
	s.log.Info().Int("total", parsed.Total).Int("added", n).Int("excluded", parsed.Excluded).Msg("registry import")
	return out, nil
}

// Remove drops numbers from the registry
func (s *Svc) Remove(ctx context.Context, in domain.RemoveInput) (int, error) {
	clean := worklist.Prepare(in.Phones, nil)
	if len(clean) == 0 {
		return 0, perr.WithField(perr.InvalidArgf("no valid phone numbers given"), "phones")
	}
	return s.repo().Delete(ctx, clean)
}

// Export writes one number per line in insertion order
func (s *Svc) Export(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.repo().All(ctx)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, p := range all {
		if _, err := bw.WriteString(p + "\n"); err != nil {
			return 0, err
		}
	}
	return len(all), bw.Flush()
}

// ExportFile replaces the flat registry file with the current registry
func (s *Svc) ExportFile(ctx context.Context) (domain.FileResult, error) {
	out := domain.FileResult{Path: s.config.FilePath}

	dir := filepath.Dir(s.config.FilePath)
	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return out, perr.Wrapf(err, perr.ErrorCodeUnknown, "create temp file in %s", dir)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := s.Export(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return out, perr.Wrapf(err, perr.ErrorCodeUnknown, "write %s", s.config.FilePath)
	}
	if err := os.Rename(tmp.Name(), s.config.FilePath); err != nil {
		return out, perr.Wrapf(err, perr.ErrorCodeUnknown, "replace %s", s.config.FilePath)
	}
	out.Count = n
	s.log.Info().Str("path", out.Path).Int("count", n).Msg("registry exported")
	return out, nil
}

// ImportFile registers the numbers in the flat registry file
func (s *Svc) ImportFile(ctx context.Context) (domain.ImportResult, error) {
	f, err := os.Open(s.config.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ImportResult{}, perr.NotFoundf("registry file %s not found", s.config.FilePath)
	}
	if err != nil {
		return domain.ImportResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "open %s", s.config.FilePath)
	}
	defer func() { _ = f.Close() }()

	exclude, err := s.Exclude(ctx)
	if err != nil {
		return domain.ImportResult{}, err
	}
	parsed, err := phone.ParseList(f, exclude)
	if err != nil {
		return domain.ImportResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "read %s", s.config.FilePath)
	}
	return s.importParsed(ctx, parsed)
}
