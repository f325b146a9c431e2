package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"testing"
	"time"

	"rollcall/internal/core/activity"
	"rollcall/internal/core/credential"
	"rollcall/internal/core/scheduler"
	perr "rollcall/internal/platform/errors"
)

// fakeGateway registers every number in known and answers with their presence
func fakeGateway(t *testing.T, known map[string]activity.User) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in importRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !in.DeleteAfter {
			t.Errorf("contacts must be removed after import")
		}
		var out importResponse
		for _, c := range in.Contacts {
			if u, ok := known[c.Phone]; ok {
				if !in.WithPresence {
					u.Presence = nil
				}
				out.Imported = append(out.Imported, Imported{ClientID: c.ClientID, Phone: c.Phone, User: u})
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func TestRegistrationProber_Probe(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, fakeGateway(t, map[string]activity.User{
		"+15550000001": {ID: 1},
		"+15550000003": {ID: 3},
	}))
	p := NewRegistrationProber(c)
	b := scheduler.SubBatch{Items: []string{"+15550000001", "+15550000002", "+15550000003"}, ContactBase: 40}

	res := p.Probe(context.Background(), credential.Credential{ID: "alpha"}, b)
	if res.Kind != scheduler.Success {
		t.Fatalf("kind = %s err = %v", res.Kind, res.Err)
	}
	if !slices.Equal(res.Outcomes, []string{"+15550000001", "+15550000003"}) {
		t.Fatalf("outcomes = %v", res.Outcomes)
	}
}

func TestActivityProber_RecordsEveryItem(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, fakeGateway(t, map[string]activity.User{
		"+15550000001": {ID: 1, Username: "ana", Presence: &activity.Presence{Kind: "recently"}},
	}))
	p := NewActivityProber(c)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	b := scheduler.SubBatch{Items: []string{"+15550000001", "+15550000002"}}
	res := p.Probe(context.Background(), credential.Credential{ID: "alpha"}, b)
	if res.Kind != scheduler.Success || len(res.Outcomes) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if r := res.Outcomes[0]; r.Status != activity.Recently || r.Username != "ana" || !r.LastSeen.Equal(now.AddDate(0, 0, -1)) {
		t.Fatalf("first = %+v", r)
	}
	if r := res.Outcomes[1]; r.Status != activity.NotRegistered {
		t.Fatalf("second = %+v", r)
	}
}

func TestProbe_AuthFailureClassified(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "AUTH_KEY_UNREGISTERED", http.StatusUnauthorized)
	})
	res := NewRegistrationProber(c).Probe(context.Background(), credential.Credential{ID: "alpha"}, scheduler.SubBatch{Items: []string{"+1"}})
	if res.Kind != scheduler.AuthFailure || !perr.IsCode(res.Err, perr.ErrorCodeAuthorization) {
		t.Fatalf("result = %+v", res)
	}
}

func TestMatched_FallsBackToPhone(t *testing.T) {
	t.Parallel()

	b := scheduler.SubBatch{Items: []string{"+15550000001"}, ContactBase: 10}
	m := matched(b, []Imported{{ClientID: 999, Phone: "1 (555) 000-0001"}})
	if _, ok := m["+15550000001"]; !ok {
		t.Fatalf("matched = %v", m)
	}
}
