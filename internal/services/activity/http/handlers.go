// Package http provides http transport for activity results
package http

import (
	stdhttp "net/http"
	"strconv"

	"rollcall/internal/core/activity"
	"rollcall/internal/modkit/httpkit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/activity/domain"
)

// Register mounts the activity routes
func Register(r httpkit.Router, q domain.QueryPort) {
	h := &handlers{q: q}
	httpkit.Get(r, "/", h.records)
	httpkit.Get(r, "/summary", h.summary)
}

type handlers struct{ q domain.QueryPort }

// records lists stored results, ?run_id ?status ?phone ?limit
func (h *handlers) records(r *stdhttp.Request) (any, error) {
	qs := r.URL.Query()
	f := domain.Filter{
		RunID:  qs.Get("run_id"),
		Status: activity.Status(qs.Get("status")),
		Phone:  qs.Get("phone"),
	}
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, perr.WithField(perr.InvalidArgf("limit must be a non negative integer"), "limit")
		}
		f.Limit = n
	}
	return h.q.Records(r.Context(), f)
}

func (h *handlers) summary(r *stdhttp.Request) (any, error) {
	return h.q.Summary(r.Context(), r.URL.Query().Get("run_id"))
}
