package httpkit

import (
	"net/http"
	"time"

	"rollcall/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	Timeout     time.Duration
	SlowRequest time.Duration
	CORSOrigins []string
}

// CommonStack is the router-wide middleware every rollcall API mounts
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.SlowRequest <= 0 {
		o.SlowRequest = 500 * time.Millisecond
	}
	mws := middleware.Defaults(o.Timeout, o.SlowRequest)
	if len(o.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins}))
	}
	return mws
}
