package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "rollcall/internal/platform/errors"
)

type patchBody struct {
	Cooldown  int    `json:"cooldown" validate:"min=0,max=3600"`
	BatchSize int    `json:"batch_size" validate:"min=1,max=100"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,e164"`
}

func req(method, body string) *http.Request {
	return httptest.NewRequest(method, "/x", strings.NewReader(body))
}

func TestParseJSON_OK(t *testing.T) {
	t.Parallel()

	got, err := ParseJSON[patchBody](req(http.MethodPost, `{"cooldown":180,"batch_size":10}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.Cooldown != 180 || got.BatchSize != 10 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		code   perr.ErrorCode
		field  string
		substr string
	}{
		{"empty", ``, perr.ErrorCodeJSON, "", "empty body"},
		{"garbage", `{nope`, perr.ErrorCodeJSON, "", "invalid JSON"},
		{"unknown field", `{"cooldown":1,"batch_size":1,"x":1}`, perr.ErrorCodeJSON, "", "unknown field"},
		{"trailing", `{"cooldown":1,"batch_size":1} {}`, perr.ErrorCodeJSON, "", "trailing"},
		{"batch too big", `{"cooldown":1,"batch_size":101}`, perr.ErrorCodeValidation, "batch_size", "at most 100"},
		{"cooldown negative", `{"cooldown":-1,"batch_size":5}`, perr.ErrorCodeValidation, "cooldown", "at least 0"},
		{"bad phone", `{"cooldown":1,"batch_size":5,"phone":"555"}`, perr.ErrorCodeValidation, "phone", "E.164"},
	}
	for _, tc := range cases {
		_, err := ParseJSON[patchBody](req(http.MethodPost, tc.body))
		if !perr.IsCode(err, tc.code) {
			t.Fatalf("%s: err = %v, want code %s", tc.name, err, tc.code)
		}
		if !strings.Contains(err.Error(), tc.substr) {
			t.Fatalf("%s: err %q missing %q", tc.name, err, tc.substr)
		}
		if e, _ := perr.As(err); e.Field() != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, e.Field(), tc.field)
		}
	}
}

func TestParseJSON_EmptyBodyOnDelete(t *testing.T) {
	t.Parallel()

	type ids struct {
		IDs []string `json:"ids"`
	}
	got, err := ParseJSON[ids](req(http.MethodDelete, ""))
	if err != nil || got.IDs != nil {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestFieldAndMessage_Nil(t *testing.T) {
	t.Parallel()

	if f, m := FieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil err gave %q %q", f, m)
	}
}
