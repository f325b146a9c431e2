// Package http provides http transport for sessions
package http

import (
	stdhttp "net/http"
	"strconv"

	"rollcall/internal/modkit/httpkit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/sessions/domain"
)

// Register mounts the session routes
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/", h.list)
	httpkit.Post(r, "/discover", h.discover)
	httpkit.Post(r, "/purge-invalid", h.purge)
	httpkit.DeleteJSON(r, "/", h.removeMany)
	httpkit.Get(r, "/{name}", h.get)
	httpkit.PatchJSON(r, "/{name}", h.update)
	httpkit.Delete(r, "/{name}", h.remove)
	httpkit.Post(r, "/{name}/reset-error", h.resetError)
	httpkit.Post(r, "/{name}/reauthorize", h.reauthorize)
}

type handlers struct{ svc domain.ServicePort }

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.svc.List(r.Context())
}

func (h *handlers) discover(r *stdhttp.Request) (any, error) {
	return h.svc.Discover(r.Context())
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), httpkit.Param(r, "name"))
}

func (h *handlers) update(r *stdhttp.Request, in domain.UpdateInput) (any, error) {
	return h.svc.Update(r.Context(), httpkit.Param(r, "name"), in)
}

// remove deletes one session, ?delete_file=true also removes its file
func (h *handlers) remove(r *stdhttp.Request) (any, error) {
	del := false
	if v := r.URL.Query().Get("delete_file"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, perr.WithField(perr.InvalidArgf("delete_file must be a boolean"), "delete_file")
		}
		del = b
	}
	return h.svc.Remove(r.Context(), domain.RemoveInput{Names: []string{httpkit.Param(r, "name")}, DeleteFile: del})
}

func (h *handlers) removeMany(r *stdhttp.Request, in domain.RemoveInput) (any, error) {
	return h.svc.Remove(r.Context(), in)
}

func (h *handlers) purge(r *stdhttp.Request) (any, error) {
	return h.svc.PurgeInvalid(r.Context())
}

func (h *handlers) resetError(r *stdhttp.Request) (any, error) {
	return h.svc.ResetError(r.Context(), httpkit.Param(r, "name"))
}

func (h *handlers) reauthorize(r *stdhttp.Request) (any, error) {
	return h.svc.Reauthorize(r.Context(), httpkit.Param(r, "name"))
}
