// Package api assembles the rollcall control plane
package api

import (
	"context"

	"rollcall/internal/adapters/gateway"
	"rollcall/internal/core/version"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/modkit/swaggerkit"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	phttp "rollcall/internal/platform/net/http"
	"rollcall/internal/platform/store"

	activitymod "rollcall/internal/services/activity/module"
	activityrepo "rollcall/internal/services/activity/repo"
	"rollcall/internal/services/checks/guardrails"
	checksmod "rollcall/internal/services/checks/module"
	metamod "rollcall/internal/services/meta/module"
	registrymod "rollcall/internal/services/registry/module"
	registryrepo "rollcall/internal/services/registry/repo"
	sessdom "rollcall/internal/services/sessions/domain"
	sessionsmod "rollcall/internal/services/sessions/module"
	sessionsrepo "rollcall/internal/services/sessions/repo"
)

// ServiceName is reported by the meta endpoints
const ServiceName = "rollcall-api"

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	CORSOrigins    []string
}

// API is the mounted control plane
type API struct {
	Checks *checksmod.Module
}

// Close stops active runs
func (a *API) Close() {
	if a != nil && a.Checks != nil {
		a.Checks.Close()
	}
}

// Set is every module built over one store and one gateway client
type Set struct {
	Modules  []module.Module
	Sessions sessdom.ServicePort
	Checks   *checksmod.Module
}

// Build constructs the modules and resolves cross module ports. owner names
// this process in the session pool lease
func Build(cfg config.Conf, st *store.Store, l *logger.Logger, owner string) Set {
	if l == nil {
		l = logger.Get()
	}
	deps := modkit.FromStore(*l, cfg, st)
	gw := gateway.NewClient(gateway.OptionsFromConfig(cfg.Prefix("GATEWAY_")))

	sessions := sessionsmod.New(deps, gateway.NewConnector(gw))
	registry := registrymod.New(deps)
	activity := activitymod.New(deps)

	sp := module.MustPortsOf[sessionsmod.Ports](sessions)
	rp := module.MustPortsOf[registrymod.Ports](registry)
	ap := module.MustPortsOf[activitymod.Ports](activity)
	checks := checksmod.New(deps, checksmod.Inputs{
		Sessions: sp.Run,
		Registry: rp.Run,
		Activity: ap.Writer,
		Gateway:  gw,
		Owner:    owner,
	})

	return Set{
		Modules:  []module.Module{metamod.New(deps, ServiceName), sessions, registry, activity, checks},
		Sessions: sp.Sessions,
		Checks:   checks,
	}
}

// Mount mounts the API onto r under /api/v1
func Mount(r phttp.Router, opt Options) *API {
	set := Build(opt.Config, opt.Store, opt.Logger, ServiceName)

	swaggerkit.Mount(r, opt.EnableSwagger, "Rollcall API", version.Info(ServiceName).Version)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	stack := httpkit.CommonStack(httpkit.StackOptions{CORSOrigins: opt.CORSOrigins})
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range set.Modules {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
	return &API{Checks: set.Checks}
}

// Migrate creates the tables every module needs. ClickHouse is skipped when disabled
func Migrate(ctx context.Context, st *store.Store) error {
	if st == nil {
		return nil
	}
	if st.PG != nil {
		if err := sessionsrepo.Migrate(ctx, st.PG); err != nil {
			return err
		}
		if err := registryrepo.Migrate(ctx, st.PG); err != nil {
			return err
		}
		if err := guardrails.Migrate(ctx, st.PG); err != nil {
			return err
		}
	}
	if st.CH != nil {
		if err := activityrepo.NewCH(st.CH).Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}
