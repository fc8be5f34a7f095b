package recordperm

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oarkflow/date"
)

const maxAdminBody = 1 << 20

// AdminHTTPServer exposes profile management and what-if evaluation over HTTP.
type AdminHTTPServer struct {
	engine *Engine
	router chi.Router
}

func NewAdminHTTPServer(engine *Engine) *AdminHTTPServer {
	s := &AdminHTTPServer{engine: engine, router: chi.NewRouter()}
	s.MountRoutes(s.router)
	return s
}

func (s *AdminHTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *AdminHTTPServer) MountRoutes(r chi.Router) {
	r.Get("/profiles", s.listProfiles)
	r.Get("/profiles/{name}", s.getProfile)
	r.Put("/profiles/{name}", s.putProfile)
	r.Delete("/profiles/{name}", s.deleteProfile)
	r.Post("/profiles/{name}/check", s.check)
	r.Post("/profiles/{name}/explain", s.explain)
	r.Post("/batch", s.batch)
	r.Get("/audit", s.audit)
}

func (s *AdminHTTPServer) listProfiles(w http.ResponseWriter, r *http.Request) {
	ps, err := s.engine.ListProfiles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *AdminHTTPServer) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetProfile(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *AdminHTTPServer) putProfile(w http.ResponseWriter, r *http.Request) {
	var p Profile
	if !readJSON(w, r, &p) {
		return
	}
	p.Name = chi.URLParam(r, "name")
	if err := s.engine.PutProfile(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (s *AdminHTTPServer) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteProfile(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *AdminHTTPServer) check(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, false)
}

func (s *AdminHTTPServer) explain(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, true)
}

func (s *AdminHTTPServer) evaluate(w http.ResponseWriter, r *http.Request, trace bool) {
	var req ExplainRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Profile = chi.URLParam(r, "name")
	if req.Locale == "" {
		req.Locale = r.Header.Get("Accept-Language")
	}
	d, err := s.engine.evaluateRequest(r.Context(), &req, trace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *AdminHTTPServer) batch(w http.ResponseWriter, r *http.Request) {
	var reqs []CheckRequest
	if !readJSON(w, r, &reqs) {
		return
	}
	ds, err := s.engine.BatchEvaluate(r.Context(), reqs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *AdminHTTPServer) audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AuditFilter{
		UserID:   q.Get("user_id"),
		RecordID: q.Get("record_id"),
		Profile:  q.Get("profile"),
		Action:   Action(q.Get("action")),
	}
	var err error
	if filter.StartTime, err = queryTime(q.Get("start")); err != nil {
		http.Error(w, "invalid start: "+err.Error(), http.StatusBadRequest)
		return
	}
	if filter.EndTime, err = queryTime(q.Get("end")); err != nil {
		http.Error(w, "invalid end: "+err.Error(), http.StatusBadRequest)
		return
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}
	entries, err := s.engine.GetAccessLog(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func queryTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return date.Parse(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidProfile):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoStore):
		status = http.StatusNotImplemented
	}
	http.Error(w, err.Error(), status)
}
