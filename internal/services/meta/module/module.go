// Package module wires meta endpoints into the API
package module

import (
	"time"

	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	metahttp "rollcall/internal/services/meta/http"
)

// Module implements the meta module
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New constructs the meta module. service names the binary in health and version payloads
func New(deps modkit.Deps, service string, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	d := metahttp.Deps{ServiceName: service, StartedAt: time.Now()}
	// a nil interface, not a typed nil, when a backend is disabled
	if deps.PG != nil {
		d.PG = deps.PG
	}
	if deps.CH != nil {
		d.CH = deps.CH
	}
	return &Module{b: b, deps: d}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return nil }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(sub httpkit.Router) { metahttp.Register(sub, m.deps) })
}
