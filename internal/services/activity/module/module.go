// Package module wires the activity service into the API
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/swaggerkit"
	"rollcall/internal/platform/config"
	"rollcall/internal/services/activity/domain"
	ahttp "rollcall/internal/services/activity/http"
	"rollcall/internal/services/activity/repo"
	"rollcall/internal/services/activity/service"
)

// Ports exposed by the activity module
type Ports struct {
	Writer domain.WriterPort
	Query  domain.QueryPort
}

// Module implements the activity module
type Module struct {
	b     modkit.Built
	svc   *service.Service
	ports Ports
}

// New constructs the activity module. Without ClickHouse every call reports unavailable
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("activity"),
		modkit.WithPrefix("/activity"),
	}, opts...)...)

	var storage service.Storage
	if deps.CH != nil {
		storage = repo.NewCH(deps.CH)
	}
	svc := service.New(storage, service.Config{HardLimit: hardLimit(deps.Cfg)})

	swaggerkit.Describe("activity",
		swaggerkit.Operation{Method: "GET", Path: "/activity", Summary: "List activity results, ?run_id ?status ?phone ?limit"},
		swaggerkit.Operation{Method: "GET", Path: "/activity/summary", Summary: "Count activity results per status, ?run_id"},
	)

	return &Module{b: b, svc: svc, ports: Ports{Writer: svc, Query: svc}}
}

func hardLimit(cfg config.Conf) int {
	return cfg.Prefix("ACTIVITY_").MayIntIn("HARD_LIMIT", 1000, 1, 100_000)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(sub httpkit.Router) { ahttp.Register(sub, m.svc) })
}
