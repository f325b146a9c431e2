package store

import (
	"context"
	"fmt"
	"time"

	chx "rollcall/internal/platform/store/ch"
	"rollcall/internal/platform/store/pg"
)

// ping retry knobs; vars so tests can shrink them
var (
	pgPingAttempts   = 20
	pgPingTimeout    = 3 * time.Second
	pgBackoffStart   = 150 * time.Millisecond
	pgBackoffCeiling = 2 * time.Second
)

// openPG opens pg, waits for it to answer and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	// ping the pool directly so boot retries don't show up in the sql trace
	var lastErr error
	backoff := pgBackoffStart
	for i := 0; i < pgPingAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pgPingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()

		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		s.Log.Debug().Int("attempt", i+1).Err(lastErr).Msg("postgres not ready")
		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, pgBackoffCeiling)
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", pgPingAttempts, lastErr)
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, Tag: cfg.CH.Tag})
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("role", cfg.CH.Role).Msg("clickhouse client ready")
	return newCHAdapter(c), nil
}
