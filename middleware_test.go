package recordperm_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oarkflow/recordperm"
)

var errRecordMissing = errors.New("record missing")

func TestGuard(t *testing.T) {
	e, _ := newTestEngine(t)
	records := map[string]*recordperm.Record{
		"r1": {ID: "r1", CreatedBy: "u1", RecordDate: "2024-06-12", RecordTime: "08:00"},
	}
	guard := recordperm.NewGuard(recordperm.GuardOptions{
		Engine:  e,
		Profile: recordperm.ProfileRecordEdit,
		Action:  recordperm.ActionEdit,
		Record: func(r *http.Request) (*recordperm.Record, error) {
			rec, ok := records[r.URL.Query().Get("id")]
			if !ok {
				return nil, errRecordMissing
			}
			return rec, nil
		},
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, errRecordMissing) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		},
		User: func(r *http.Request) *recordperm.ActingUser {
			return &recordperm.ActingUser{ID: r.Header.Get("X-User"), PositionTitle: r.Header.Get("X-Title")}
		},
	})

	var seen recordperm.Decision
	h := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = recordperm.DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		id     string
		user   string
		title  string
		status int
	}{
		{"owner", "r1", "u1", "", http.StatusNoContent},
		{"stranger", "r1", "u2", "staff nurse", http.StatusForbidden},
		{"supervisor", "r1", "u2", "supervisor", http.StatusNoContent},
		{"missing record", "r9", "u1", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, "/records?id="+tc.id, nil)
		req.Header.Set("X-User", tc.user)
		req.Header.Set("X-Title", tc.title)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.name, rr.Code, tc.status)
		}
	}
	if seen.Rule != recordperm.RuleRoleFallback {
		t.Fatalf("handler should see the last allowed decision, got %+v", seen)
	}
}

func TestGuardMisconfigured(t *testing.T) {
	var gotErr error
	h := recordperm.NewGuard(recordperm.GuardOptions{
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			gotErr = err
			w.WriteHeader(http.StatusInternalServerError)
		},
	})(http.NotFoundHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/", nil))
	if rr.Code != http.StatusInternalServerError || gotErr == nil || errors.Is(gotErr, recordperm.ErrNoStore) {
		t.Fatalf("expected a configuration error, got %d %v", rr.Code, gotErr)
	}
}
