// Package service stores and summarizes activity check results
package service

import (
	"context"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/core/phone"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/services/activity/domain"
)

// Storage is the persistence the service needs
type Storage interface {
	Insert(ctx context.Context, runID string, recs []activity.Record) error
	Records(ctx context.Context, f domain.Filter) ([]domain.Row, error)
	StatusCounts(ctx context.Context, runID string) (map[activity.Status]int, *time.Time, error)
}

// Config for the activity service
type Config struct {
	HardLimit int
}

// Service implements domain.WriterPort and domain.QueryPort
type Service struct {
	Storage Storage
	Cfg     Config
	log     logger.Logger
}

// New constructs the service. A nil storage makes every call report unavailable
func New(storage Storage, cfg Config) *Service {
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = 1000
	}
	return &Service{Storage: storage, Cfg: cfg, log: *logger.Named("activity")}
}

func (s *Service) ready() error {
	if s.Storage == nil {
		return perr.Unavailablef("activity storage is disabled, enable clickhouse")
	}
	return nil
}

// Write implements domain.WriterPort
func (s *Service) Write(ctx context.Context, runID string, recs []activity.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.Storage.Insert(ctx, runID, recs); err != nil {
		return err
	}
	s.log.Debug().Str("run_id", runID).Int("records", len(recs)).Msg("activity records written")
	return nil
}

// Records implements domain.QueryPort
func (s *Service) Records(ctx context.Context, f domain.Filter) ([]domain.Row, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if f.Status != "" && !knownStatus(f.Status) {
		return nil, perr.WithField(perr.InvalidArgf("unknown status %q", f.Status), "status")
	}
	if f.Phone != "" {
		f.Phone = phone.Normalize(f.Phone)
	}
	if f.Limit <= 0 || f.Limit > s.Cfg.HardLimit {
		f.Limit = s.Cfg.HardLimit
	}
	return s.Storage.Records(ctx, f)
}

// Summary implements domain.QueryPort. Every status appears, in display order
func (s *Service) Summary(ctx context.Context, runID string) (domain.Summary, error) {
	if err := s.ready(); err != nil {
		return domain.Summary{}, err
	}
	counts, latest, err := s.Storage.StatusCounts(ctx, runID)
	if err != nil {
		return domain.Summary{}, err
	}
	return Summarize(runID, counts, latest), nil
}

// Summarize folds raw counts into a Summary
func Summarize(runID string, counts map[activity.Status]int, latest *time.Time) domain.Summary {
	out := domain.Summary{RunID: runID, Latest: latest, ByStatus: make([]domain.StatusCount, 0, len(activity.Statuses))}
	for _, st := range activity.Statuses {
		n := counts[st]
		out.ByStatus = append(out.ByStatus, domain.StatusCount{Status: st, Count: n})
		out.Total += n
		if activity.IsActive(st) {
			out.Active += n
		}
	}
	return out
}

func knownStatus(st activity.Status) bool {
	for _, s := range activity.Statuses {
		if s == st {
			return true
		}
	}
	return false
}
