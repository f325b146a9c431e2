// Package http provides http transport for the registry
package http

import (
	stdhttp "net/http"
	"strconv"

	"rollcall/internal/modkit/httpkit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/registry/domain"
)

// Register mounts the registry routes
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/", h.list)
	httpkit.PostJSON(r, "/import", h.importText)
	httpkit.DeleteJSON(r, "/", h.remove)
	httpkit.Post(r, "/export-file", h.exportFile)
	httpkit.Post(r, "/import-file", h.importFile)
	r.Get("/export", h.export)
	httpkit.Get(r, "/{phone}", h.contains)
}

type handlers struct{ svc domain.ServicePort }

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return nil, err
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		return nil, err
	}
	return h.svc.List(r.Context(), limit, offset)
}

func (h *handlers) contains(r *stdhttp.Request) (any, error) {
	p := httpkit.Param(r, "phone")
	ok, err := h.svc.Contains(r.Context(), p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"phone": p, "registered": ok}, nil
}

func (h *handlers) importText(r *stdhttp.Request, in domain.ImportInput) (any, error) {
	return h.svc.Import(r.Context(), in)
}

func (h *handlers) remove(r *stdhttp.Request, in domain.RemoveInput) (any, error) {
	n, err := h.svc.Remove(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return map[string]int{"removed": n}, nil
}

func (h *handlers) exportFile(r *stdhttp.Request) (any, error) {
	return h.svc.ExportFile(r.Context())
}

func (h *handlers) importFile(r *stdhttp.Request) (any, error) {
	return h.svc.ImportFile(r.Context())
}

// export streams the registry as the flat phone_register.txt format
func (h *handlers) export(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="phone_register.txt"`)
	if _, err := h.svc.Export(r.Context(), w); err != nil {
		httpkit.RespondError(w, r, err)
	}
}

func intQuery(r *stdhttp.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, perr.WithField(perr.InvalidArgf("%s must be a non negative integer", key), key)
	}
	return n, nil
}
