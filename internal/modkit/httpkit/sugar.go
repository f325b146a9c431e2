package httpkit

import (
	"net/http"
	"strings"

	phttp "rollcall/internal/platform/net/http"
)

// Get mounts a body-less handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) { phttp.GetJSON(r, path, h) }

// Post mounts a body-less handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, phttp.JSONHandlerNoBody(h))
}

// Delete mounts a body-less handler under DELETE
func Delete(r Router, path string, h func(*http.Request) (any, error)) {
	phttp.DeleteJSON(r, path, h)
}

// PostJSON mounts a handler that binds and validates a T body under POST
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	phttp.PostJSON(r, path, h)
}

// PatchJSON mounts a handler that binds and validates a T body under PATCH
func PatchJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	phttp.PatchJSON(r, path, h)
}

// DeleteJSON mounts a handler that binds a T body under DELETE
func DeleteJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Delete(path, phttp.JSONHandler(h))
}

// MountUnder mounts a module subrouter with its own middleware. The prefix is
// normalized to one leading slash; a blank prefix mounts the module in a group at r
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	sub := func(sr Router) {
		if len(mw) > 0 {
			sr.Use(mw...)
		}
		mount(sr)
	}
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		r.Route("/"+p, sub)
		return
	}
	r.Group(sub)
}
