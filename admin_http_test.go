package recordperm_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/recordperm/stores"
)

func newAdminServer(t *testing.T) (*httptest.Server, *stores.MemoryAuditStore) {
	t.Helper()
	audit := stores.NewMemoryAuditStore()
	e, _ := newTestEngine(t, recordperm.WithAuditStore(audit))
	srv := httptest.NewServer(recordperm.NewAdminHTTPServer(e))
	t.Cleanup(srv.Close)
	return srv, audit
}

func doJSON(t *testing.T, method, url string, body any, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdminProfileLifecycle(t *testing.T) {
	srv, _ := newAdminServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/profiles", nil, nil)
	var list []*recordperm.Profile
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil || len(list) != len(recordperm.BuiltinProfiles()) {
		t.Fatalf("list builtins: %d profiles, %v", len(list), err)
	}

	body := map[string]any{"action": "edit", "rules": map[string]any{"hours_limit": 6}}
	resp = doJSON(t, http.MethodPut, srv.URL+"/profiles/vitals.edit", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/profiles/vitals.edit", nil, nil)
	var got recordperm.Profile
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "vitals.edit" || got.Config().HoursLimit != 6 {
		t.Fatalf("unexpected profile %+v", got)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/profiles/bad", map[string]any{"action": "archive"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid profile should be 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/profiles/vitals.edit", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/profiles/vitals.edit", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted profile should be 404, got %d", resp.StatusCode)
	}
}

func TestAdminExplainUsesAcceptLanguage(t *testing.T) {
	srv, _ := newAdminServer(t)
	req := recordperm.ExplainRequest{
		Record: recordperm.Record{ID: "r1", CreatedBy: "u1", RecordDate: "2024-06-12", RecordTime: "08:00"},
		User:   recordperm.ActingUser{ID: "u2", PositionTitle: "staff nurse"},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/profiles/record.edit/explain", req, http.Header{"Accept-Language": {"th-TH,th;q=0.9"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("explain: status %d", resp.StatusCode)
	}
	var d recordperm.Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Allowed || d.Reason != recordperm.Thai.Reason(recordperm.ReasonEditNotOwner) || len(d.Trace) == 0 {
		t.Fatalf("unexpected decision %+v", d)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/profiles/record.delete/check", recordperm.ExplainRequest{Action: recordperm.ActionEdit}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("action mismatch should be 400, got %d", resp.StatusCode)
	}
}

func TestAdminBatchAndAudit(t *testing.T) {
	srv, audit := newAdminServer(t)
	reqs := []recordperm.CheckRequest{
		{Profile: recordperm.ProfileRecordEdit, Record: &recordperm.Record{ID: "r1", CreatedBy: "u1", RecordDate: "2024-06-12"}, User: &recordperm.ActingUser{ID: "u1"}},
		{Profile: recordperm.ProfileRecordDelete, Record: &recordperm.Record{ID: "r2", CreatedBy: "u1", RecordDate: "2024-06-12"}, User: &recordperm.ActingUser{ID: "u1"}},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/batch", reqs, nil)
	var ds []recordperm.Decision
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil || len(ds) != 2 {
		t.Fatalf("batch: %v %v", ds, err)
	}
	// midnight record: 9h old, inside the edit window but outside the delete window
	if !ds[0].Allowed || ds[1].Allowed {
		t.Fatalf("unexpected batch result %+v", ds)
	}

	deadline := time.Now().Add(2 * time.Second)
	for audit.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/audit?record_id=r2&start=2024-06-12T00:00:00Z", nil, nil)
	var entries []*recordperm.AuditEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Decision.Code != recordperm.ReasonDeleteWindow {
		t.Fatalf("unexpected audit entries %+v", entries)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/audit?limit=many", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit should be 400, got %d", resp.StatusCode)
	}
}
