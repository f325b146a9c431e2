package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/core/version"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"

	"rollcall/internal/services/api"
	"rollcall/internal/services/checks/domain"
)

const service = "rollcall-check"

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() { os.Exit(run()) }

// run returns the process exit code so deferred cleanup always runs
func run() int {
	var (
		fFile     = flag.String("file", "", "number list, any number of whitespace separated numbers per line")
		fKind     = flag.String("kind", "registration", "registration | activity")
		fSessions = flag.String("sessions", "", "sessions directory (overrides SESSIONS_DIR)")
		fAll      = flag.Bool("include-registered", false, "also check numbers already in the registry")
		fOut      = flag.String("out", "", "write confirmed numbers here, one per line (registration only)")
		fDiscover = flag.Bool("discover", true, "scan the sessions directory before the run")
	)
	flag.Parse()

	l := logger.Get()
	if *fFile == "" {
		l.Error().Msg("-file is required")
		return 1
	}
	kind := domain.Kind(strings.ToLower(*fKind))
	mustSetEnv("SESSIONS_DIR", *fSessions)

	body, err := os.ReadFile(*fFile)
	if err != nil {
		l.Error().Err(err).Str("file", *fFile).Msg("read number list")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	chOn := chCfg.MayBool("ENABLED", kind == domain.Activity)
	chURL := ""
	if chOn {
		chURL = chCfg.MustString("DBURL")
	}
	st, err := store.Open(ctx, store.Config{
		AppName: service,
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
		},
		CH: store.CHConfig{Enabled: chOn, URL: chURL, Role: "check", Tag: version.Info(service).Version},
	}, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return 1
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := api.Migrate(ctx, st); err != nil {
		l.Error().Err(err).Msg("migrate failed")
		return 1
	}

	set := api.Build(root, st, l, service)
	defer set.Checks.Close()

	if *fDiscover {
		res, err := set.Sessions.Discover(ctx)
		if err != nil {
			l.Error().Err(err).Msg("discover sessions")
			return 1
		}
		l.Info().Int("added", len(res.Added)).Int("known", res.Known).Int("missing", len(res.Missing)).Msg("sessions discovered")
	}

	runs := set.Checks.Service()
	snap, err := runs.Start(ctx, domain.StartInput{Kind: kind, Text: string(body), IncludeRegistered: *fAll})
	if err != nil {
		l.Error().Err(err).Msg("start run")
		return 1
	}
	fmt.Printf("run %s: %d numbers, %d invalid, %d duplicates, %d excluded, %d scheduled\n",
		snap.ID, snap.Input.Total, snap.Input.Invalid, snap.Input.Duplicates, snap.Input.Excluded, snap.Input.Scheduled)

	go func() {
		<-ctx.Done()
		_, _ = runs.Stop(context.Background(), snap.ID)
	}()

	done, err := runs.Wait(context.Background(), snap.ID)
	if err != nil {
		l.Error().Err(err).Msg("wait for run")
		return 1
	}
	res, err := runs.Results(context.Background(), snap.ID)
	if err != nil {
		l.Error().Err(err).Msg("run results")
		return 1
	}
	if err := report(done, res, *fOut); err != nil {
		l.Error().Err(err).Msg("write results")
		return 1
	}
	return 0
}

func report(s domain.Snapshot, res any, out string) error {
	took := time.Duration(0)
	if s.FinishedAt != nil {
		took = s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
	}
	fmt.Printf("checked %d of %d in %s, %d outcomes\n", s.Checked, s.Total, took, s.Outcomes)
	switch {
	case s.Stopped:
		fmt.Println("stopped before completion")
	case s.Exhausted:
		fmt.Println("every session became unusable")
	}
	if s.LastError != "" {
		fmt.Printf("last error: %s\n", s.LastError)
	}

	switch v := res.(type) {
	case []string:
		fmt.Printf("%d registered\n", len(v))
		if out != "" {
			return writeNumbers(out, v)
		}
		for _, p := range v {
			fmt.Println(p)
		}
	case []activity.Record:
		counts := map[activity.Status]int{}
		for _, r := range v {
			counts[r.Status]++
		}
		for _, st := range activity.Statuses {
			if n := counts[st]; n > 0 {
				fmt.Printf("%-15s %d\n", st, n)
			}
		}
	}
	return nil
}

// writeNumbers writes one number per line; an empty list leaves an empty file
func writeNumbers(path string, nums []string) error {
	var b strings.Builder
	for _, n := range nums {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
