// Package module wires check runs into the API
package module

import (
	"time"

	"rollcall/internal/adapters/gateway"
	"rollcall/internal/core/scheduler"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/swaggerkit"
	"rollcall/internal/platform/config"
	actdom "rollcall/internal/services/activity/domain"
	"rollcall/internal/services/checks/domain"
	"rollcall/internal/services/checks/guardrails"
	chttp "rollcall/internal/services/checks/http"
	"rollcall/internal/services/checks/service"
	regdom "rollcall/internal/services/registry/domain"
	sessdom "rollcall/internal/services/sessions/domain"
)

// Ports exposed by the checks module
type Ports struct {
	Runs domain.ServicePort
}

// Inputs are the ports of other modules a run writes to
type Inputs struct {
	Sessions sessdom.RunPort
	Registry regdom.RunPort
	Activity actdom.WriterPort
	// Gateway is the probe backend; nil leaves both run kinds unavailable
	Gateway *gateway.Client
	// Owner names this process in the session pool lease
	Owner string
}

// FromConfig reads SCHEDULER_* and CHECKS_*
func FromConfig(cfg config.Conf) service.Config {
	return service.Config{
		Scheduler: scheduler.FromConfig(cfg.Prefix("SCHEDULER_")),
		KeepRuns:  cfg.Prefix("CHECKS_").MayIntIn("KEEP_RUNS", 20, 1, 1000),
	}
}

// Module implements the checks module
type Module struct {
	b     modkit.Built
	svc   *service.Svc
	ports Ports
}

// New constructs the checks module
func New(deps modkit.Deps, in Inputs, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("checks"),
		modkit.WithPrefix("/runs"),
	}, opts...)...)

	d := service.Deps{Sessions: in.Sessions, Registry: in.Registry, Activity: in.Activity}
	if in.Gateway != nil {
		d.Registration = gateway.NewRegistrationProber(in.Gateway)
		d.Presence = gateway.NewActivityProber(in.Gateway)
	}
	if deps.PG != nil {
		ttl := deps.Cfg.Prefix("CHECKS_").MayDuration("LEASE_TTL", 2*time.Minute)
		owner := in.Owner
		if owner == "" {
			owner = "rollcall"
		}
		d.Lease = guardrails.New(deps.PG, "session_pool", owner, ttl)
	}
	svc := service.New(d, FromConfig(deps.Cfg))

	swaggerkit.Describe("runs",
		swaggerkit.Operation{Method: "POST", Path: "/runs", Summary: "Start a registration or activity run",
			Body: map[string]string{"kind": "string", "numbers": "array", "text": "string", "include_registered": "boolean"}},
		swaggerkit.Operation{Method: "GET", Path: "/runs", Summary: "List tracked runs, newest first"},
		swaggerkit.Operation{Method: "GET", Path: "/runs/{id}", Summary: "Live progress of a run"},
		swaggerkit.Operation{Method: "POST", Path: "/runs/{id}/stop", Summary: "Stop a run, in flight probes finish"},
		swaggerkit.Operation{Method: "GET", Path: "/runs/{id}/results", Summary: "Outcomes of a finished run"},
	)

	return &Module{b: b, svc: svc, ports: Ports{Runs: svc}}
}

// Service exposes the orchestrator for callers that wait on runs
func (m *Module) Service() *service.Svc { return m.svc }

// Close stops active runs and waits for them
func (m *Module) Close() { m.svc.Close() }

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(sub httpkit.Router) { chttp.Register(sub, m.svc) })
}
