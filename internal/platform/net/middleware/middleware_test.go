package middleware

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "rollcall/internal/platform/errors"
	pnet "rollcall/internal/platform/net"
	phttp "rollcall/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func chain(h stdhttp.Handler, mws ...func(stdhttp.Handler) stdhttp.Handler) stdhttp.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestRecoverJSON_WritesEnvelope(t *testing.T) {
	t.Parallel()

	h := chain(stdhttp.HandlerFunc(func(stdhttp.ResponseWriter, *stdhttp.Request) {
		panic("kaboom")
	}), RequestID(), RequestContext, RecoverJSON)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	if rr.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != perr.ErrorCodePanic || env.RequestID == "" {
		t.Fatalf("envelope = %+v", env)
	}
	if rr.Header().Get("X-Request-ID") != env.RequestID {
		t.Fatalf("request id header %q != body %q", rr.Header().Get("X-Request-ID"), env.RequestID)
	}
}

func TestRequestContext_PropagatesIncomingID(t *testing.T) {
	t.Parallel()

	var seen string
	h := chain(stdhttp.HandlerFunc(func(_ stdhttp.ResponseWriter, r *stdhttp.Request) {
		seen = pnet.RequestID(r.Context())
	}), RequestID(), RequestContext)

	r := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "abc-123" {
		t.Fatalf("request id = %q", seen)
	}
}

func TestAccessLog_CapturesStatusAndBytes(t *testing.T) {
	t.Parallel()

	var cw *captureWriter
	inner := stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		cw, _ = w.(*captureWriter)
		w.WriteHeader(stdhttp.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	})
	h := AccessLogZerolog(AccessLogOptions{Slow: time.Nanosecond})(inner)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	if cw == nil || cw.status != stdhttp.StatusTeapot || cw.bytes != 5 {
		t.Fatalf("capture = %+v", cw)
	}
}

func TestDefaults_ServeThroughChi(t *testing.T) {
	t.Parallel()

	m := chi.NewRouter()
	m.Use(Defaults(time.Second, time.Second)...)
	m.Use(CORS(CORSOptions{AllowedOrigins: []string{"*"}}))
	m.Get("/x", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { _, _ = w.Write([]byte("ok")) })

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, "/x", nil))
	if rr.Code != 200 || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("status=%d reqid=%q", rr.Code, rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("NoCache header missing")
	}
}
