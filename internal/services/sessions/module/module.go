// Package module wires the sessions service into the API
package module

import (
	"rollcall/internal/core/pool"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/swaggerkit"
	shttp "rollcall/internal/services/sessions/http"
	"rollcall/internal/services/sessions/repo"
	"rollcall/internal/services/sessions/service"
)

// Module implements the sessions module
type Module struct {
	b     modkit.Built
	svc   *service.Svc
	ports Ports
}

// New constructs the sessions module. conn may be nil, re-authorization then
// reports unavailable
func New(deps modkit.Deps, conn pool.Connector, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("sessions"),
		modkit.WithPrefix("/sessions"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), conn, service.Config{
		Dir:              o.Dir,
		Glob:             o.Glob,
		DefaultCooldown:  o.DefaultCooldown,
		DefaultBatchSize: o.DefaultBatchSize,
	})

	swaggerkit.Describe("sessions",
		swaggerkit.Operation{Method: "GET", Path: "/sessions", Summary: "List sessions"},
		swaggerkit.Operation{Method: "POST", Path: "/sessions/discover", Summary: "Scan the sessions directory"},
		swaggerkit.Operation{Method: "GET", Path: "/sessions/{name}", Summary: "Get a session"},
		swaggerkit.Operation{Method: "PATCH", Path: "/sessions/{name}", Summary: "Update cooldown, batch size or active flag",
			Body: map[string]string{"cooldown": "integer", "batch_size": "integer", "active": "boolean"}},
		swaggerkit.Operation{Method: "DELETE", Path: "/sessions/{name}", Summary: "Remove a session, ?delete_file=true removes its file"},
		swaggerkit.Operation{Method: "DELETE", Path: "/sessions", Summary: "Remove several sessions",
			Body: map[string]string{"names": "array", "delete_file": "boolean"}},
		swaggerkit.Operation{Method: "POST", Path: "/sessions/purge-invalid", Summary: "Remove error and unauthorized sessions with their files"},
		swaggerkit.Operation{Method: "POST", Path: "/sessions/{name}/reset-error", Summary: "Move an error session back to idle"},
		swaggerkit.Operation{Method: "POST", Path: "/sessions/{name}/reauthorize", Summary: "Reconnect a session and check its authorization"},
	)

	return &Module{b: b, svc: svc, ports: Ports{Sessions: svc, Run: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(sub httpkit.Router) { shttp.Register(sub, m.svc) })
}
