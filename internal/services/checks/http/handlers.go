// Package http provides http transport for check runs
package http

import (
	stdhttp "net/http"

	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/services/checks/domain"
)

// Register mounts the run routes
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	httpkit.PostJSON(r, "/", h.start)
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.Post(r, "/{id}/stop", h.stop)
	httpkit.Get(r, "/{id}/results", h.results)
}

type handlers struct{ svc domain.ServicePort }

func (h *handlers) start(r *stdhttp.Request, in domain.StartInput) (any, error) {
	snap, err := h.svc.Start(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(snap), nil
}

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.svc.List(r.Context())
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), httpkit.Param(r, "id"))
}

func (h *handlers) stop(r *stdhttp.Request) (any, error) {
	snap, err := h.svc.Stop(r.Context(), httpkit.Param(r, "id"))
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(snap), nil
}

func (h *handlers) results(r *stdhttp.Request) (any, error) {
	return h.svc.Results(r.Context(), httpkit.Param(r, "id"))
}
