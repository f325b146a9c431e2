package service

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/sessions/domain"
)

// Discover scans the sessions dir recursively. New files get default settings,
// known files keep theirs and persisted sessions without a file are reported
func (s *Svc) Discover(ctx context.Context) (domain.DiscoverResult, error) {
	out := domain.DiscoverResult{Added: []string{}, Moved: []string{}, Missing: []string{}}

	found, err := scanDir(s.config.Dir, s.config.Glob)
	if err != nil {
		return out, err
	}

	known, err := s.repo().List(ctx)
	if err != nil {
		return out, err
	}
	byName := make(map[string]domain.Session, len(known))
	for _, k := range known {
		byName[k.Name] = k
	}

	for _, name := range sortedKeys(found) {
		path := found[name]
		cur, ok := byName[name]
		switch {
		case !ok:
			inserted, err := s.repo().Insert(ctx, domain.Session{
				Name:            name,
				FilePath:        path,
				Active:          true,
				CooldownSeconds: int(s.config.DefaultCooldown.Seconds()),
				BatchSize:       s.config.DefaultBatchSize,
			})
			if err != nil {
				return out, err
			}
			if inserted {
				out.Added = append(out.Added, name)
			}
		case cur.FilePath != path:
			if err := s.repo().UpdatePath(ctx, name, path); err != nil {
				return out, err
			}
			out.Moved = append(out.Moved, name)
			out.Known++
		default:
			out.Known++
		}
	}

	for _, k := range known {
		if _, ok := found[k.Name]; !ok {
			out.Missing = append(out.Missing, k.Name)
		}
	}

	s.log.Info().
		Str("dir", s.config.Dir).
		Int("added", len(out.Added)).
		Int("known", out.Known).
		Int("missing", len(out.Missing)).
		Msg("sessions discovered")
	return out, nil
}

// scanDir maps session name (file base name without extension) to path. The
// first path in walk order wins when two files share a name
func scanDir(dir, glob string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(glob, d.Name())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if _, dup := out[name]; !dup {
			out[name] = p
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "scan sessions dir %s", dir)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
