// Package module wires the registry service into the API
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/swaggerkit"
	"rollcall/internal/platform/config"
	"rollcall/internal/services/registry/domain"
	rhttp "rollcall/internal/services/registry/http"
	"rollcall/internal/services/registry/repo"
	"rollcall/internal/services/registry/service"
)

// Ports exposed by the registry module
type Ports struct {
	Registry domain.ServicePort
	Run      domain.RunPort
}

// Options controls the registry
type Options struct {
	FilePath string
	MaxPage  int
}

// FromConfig reads REGISTRY_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("REGISTRY_")
	return Options{
		FilePath: c.MayString("FILE", "phone_register.txt"),
		MaxPage:  c.MayIntIn("MAX_PAGE", 1000, 1, 100_000),
	}
}

// Module implements the registry module
type Module struct {
	b     modkit.Built
	svc   *service.Svc
	ports Ports
}

// New constructs the registry module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("registry"),
		modkit.WithPrefix("/registry"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), service.Config{FilePath: o.FilePath, MaxPage: o.MaxPage})

	swaggerkit.Describe("registry",
		swaggerkit.Operation{Method: "GET", Path: "/registry", Summary: "Page through confirmed numbers, ?limit and ?offset"},
		swaggerkit.Operation{Method: "GET", Path: "/registry/{phone}", Summary: "Check whether a number is registered"},
		swaggerkit.Operation{Method: "POST", Path: "/registry/import", Summary: "Register numbers from text",
			Body: map[string]string{"text": "string"}},
		swaggerkit.Operation{Method: "DELETE", Path: "/registry", Summary: "Remove numbers",
			Body: map[string]string{"phones": "array"}},
		swaggerkit.Operation{Method: "GET", Path: "/registry/export", Summary: "Download the registry as phone_register.txt"},
		swaggerkit.Operation{Method: "POST", Path: "/registry/export-file", Summary: "Write the registry file on the server"},
		swaggerkit.Operation{Method: "POST", Path: "/registry/import-file", Summary: "Register the numbers in the registry file"},
	)

	return &Module{b: b, svc: svc, ports: Ports{Registry: svc, Run: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(sub httpkit.Router) { rhttp.Register(sub, m.svc) })
}
