package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/core/version"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	phttp "rollcall/internal/platform/net/http"
	"rollcall/internal/platform/store"

	"rollcall/internal/services/api"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chOn := chCfg.MayBool("ENABLED", false)
	chURL := ""
	if chOn {
		chURL = chCfg.MustString("DBURL")
	}
	st, err := store.Open(ctx, store.Config{
		AppName: api.ServiceName,
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chOn,
			URL:     chURL,
			Role:    "api",
			Tag:     version.Info(api.ServiceName).Version,
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := api.Migrate(ctx, st); err != nil {
		l.Panic().Err(err).Msg("migrate failed")
	}

	// reads CORE_API_PORT
	srv := phttp.NewServer(apiCfg)
	a := api.Mount(srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Logger:         l,
		EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
		CORSOrigins:    apiCfg.MayCSV("CORS_ORIGINS", nil),
	})

	if err := srv.Run(ctx, apiCfg.MayDuration("SHUTDOWN_GRACE", 10*time.Second)); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
	// in flight probes finish and session health is saved before the store closes
	a.Close()
}
