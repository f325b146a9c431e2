package modkit

import (
	"net/http"

	"rollcall/internal/modkit/httpkit"
	str "rollcall/internal/platform/strings"
)

// Built is the resolved option set
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Register func(httpkit.Router)
}

// Build applies opts over an empty config. Register defaults to a no-op
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(httpkit.Router) {}
	}
	return Built{
		Name:     c.name,
		Prefix:   c.prefix,
		Mw:       append([]func(http.Handler) http.Handler(nil), c.mw...),
		Register: c.register,
	}
}

// Mount routes own under b.Prefix with b's middleware, then b.Register
func (b Built) Mount(r httpkit.Router, own func(httpkit.Router)) {
	httpkit.MountUnder(r, str.MustPrefix(b.Prefix), b.Mw, func(sub httpkit.Router) {
		own(sub)
		b.Register(sub)
	})
}
