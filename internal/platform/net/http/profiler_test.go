package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMountProfiler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		enabled bool
		want    int
	}{
		{true, stdhttp.StatusOK},
		{false, stdhttp.StatusNotFound},
	}
	for _, tc := range cases {
		m := chi.NewRouter()
		MountProfiler(AdaptChi(m), "/debug", tc.enabled)
		rr := httptest.NewRecorder()
		m.ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, "/debug/pprof/", nil))
		if rr.Code != tc.want {
			t.Fatalf("enabled=%v: status = %d, want %d", tc.enabled, rr.Code, tc.want)
		}
	}
}
