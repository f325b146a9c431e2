package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouter adapts chi.Router (root mux or sub router) to Router
type chiRouter struct{ r chi.Router }

// AdaptChi adapts a chi router to a Router
func AdaptChi(r chi.Router) Router { return chiRouter{r: r} }

func (c chiRouter) Get(p string, h Handler)    { c.r.MethodFunc(http.MethodGet, p, h) }
func (c chiRouter) Post(p string, h Handler)   { c.r.MethodFunc(http.MethodPost, p, h) }
func (c chiRouter) Put(p string, h Handler)    { c.r.MethodFunc(http.MethodPut, p, h) }
func (c chiRouter) Patch(p string, h Handler)  { c.r.MethodFunc(http.MethodPatch, p, h) }
func (c chiRouter) Delete(p string, h Handler) { c.r.MethodFunc(http.MethodDelete, p, h) }

func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

func (c chiRouter) Mux() http.Handler { return c.r }

// URLParam returns a chi path parameter
func URLParam(r *http.Request, key string) string { return chi.URLParam(r, key) }
