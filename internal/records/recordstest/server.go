// Package recordstest provides an in-memory stand-in for the upstream arbitros API.
package recordstest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Server serves /api/arbitros from memory. PUT replaces the stored object with
// the request body merged over the previous one.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	records map[int64]map[string]any
	nextID  int64
	fail    map[string]int // method -> forced status
	calls   []string
}

// New starts a server seeded with records; each seed must carry an "id".
func New(seed ...map[string]any) *Server {
	s := &Server{records: make(map[int64]map[string]any), fail: make(map[string]int)}
	for _, r := range seed {
		id := toInt(r["id"])
		s.records[id] = clone(r)
		if id >= s.nextID {
			s.nextID = id
		}
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Fail forces every request with method to answer status; 0 clears it.
func (s *Server) Fail(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, method)
		return
	}
	s.fail[method] = status
}

// Record returns a copy of the stored record.
func (s *Server) Record(id int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return clone(r), ok
}

// Calls returns "METHOD path" entries in arrival order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)
	if status, ok := s.fail[r.Method]; ok {
		writeJSON(w, status, map[string]any{"error": "forced failure"})
		return
	}
	rest, ok := strings.CutPrefix(r.URL.Path, "/api/arbitros")
	if !ok {
		http.NotFound(w, r)
		return
	}
	rest = strings.Trim(rest, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.sorted())
	case rest == "" && r.Method == http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
			return
		}
		s.nextID++
		body["id"] = s.nextID
		s.records[s.nextID] = body
		writeJSON(w, http.StatusCreated, body)
	case rest == "search" && r.Method == http.MethodGet:
		s.findBy(w, "username", r.URL.Query().Get("username"))
	case strings.HasPrefix(rest, "cedula/") && r.Method == http.MethodGet:
		s.findBy(w, "cedula", strings.TrimPrefix(rest, "cedula/"))
	default:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		s.byID(w, r, id)
	}
}

func (s *Server) byID(w http.ResponseWriter, r *http.Request, id int64) {
	rec, ok := s.records[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Arbitro no encontrado"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
			return
		}
		for k, v := range body {
			rec[k] = v
		}
		rec["id"] = id
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		delete(s.records, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) findBy(w http.ResponseWriter, field, value string) {
	for _, rec := range s.sorted() {
		if v, _ := rec[field].(string); v == value && value != "" {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Arbitro no encontrado"})
}

func (s *Server) sorted() []map[string]any {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func clone(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
