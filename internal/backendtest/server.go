// Package backendtest runs an in-process fake of the chatbot backend for tests.
//
// By default the fake behaves like the real service: create marks it ready,
// chat answers only when ready, and status reports what create stored. Each
// route can be overridden with a canned Reply.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	PathRoot   = "/"
	PathCreate = "/create-chatbot"
	PathChat   = "/chat"
	PathStatus = "/chatbot-status"
)

// Reply is a canned response. A zero Status means 200.
type Reply struct {
	Status int
	Body   string
	Delay  time.Duration
}

type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	overrides   map[string]Reply
	hits        map[string]int
	ready       bool
	companyName string
	websiteURL  string
	creates     []map[string]string
	questions   []string
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		overrides: make(map[string]Reply),
		hits:      make(map[string]int),
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

// Close stops the server early, e.g. to simulate an unreachable backend.
func (s *Server) Close() { s.srv.Close() }

// Override replaces the built-in behavior of path with reply.
func (s *Server) Override(path string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = reply
}

// SetReady seeds a session that predates the client, as after a page reload.
func (s *Server) SetReady(companyName, websiteURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.companyName = companyName
	s.websiteURL = websiteURL
}

func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits counts every request the fake has served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func (s *Server) Creates() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.creates...)
}

func (s *Server) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Get(PathRoot, s.handleRoot)
	r.Post(PathCreate, s.handleCreate)
	r.Post(PathChat, s.handleChat)
	r.Get(PathStatus, s.handleStatus)
	r.Get("/test-ai", s.handleDiagnostic("AI connection successful"))
	r.Get("/test-db", s.handleDiagnostic("Database connection successful"))
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		reply, ok := s.overrides[r.URL.Path]
		s.mu.Unlock()

		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if r.Method == http.MethodPost {
			s.recordBody(r)
		}
		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply.Body))
	})
}

func (s *Server) recordBody(r *http.Request) {
	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.URL.Path {
	case PathCreate:
		s.creates = append(s.creates, payload)
	case PathChat:
		s.questions = append(s.questions, payload["question"])
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "online",
		"message": "AI Chatbot Assistant API is running",
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No data provided"})
		return
	}
	company := strings.TrimSpace(payload["company_name"])
	site := strings.TrimSpace(payload["website_url"])

	s.mu.Lock()
	s.creates = append(s.creates, payload)
	if company == "" || site == "" {
		s.mu.Unlock()
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Both company_name and website_url are required",
		})
		return
	}
	s.ready = true
	s.companyName = company
	s.websiteURL = site
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("Chatbot created for %s", company),
		"company_id": 1,
		"data_extracted": map[string]any{
			"title":            company,
			"services_count":   0,
			"has_contact_info": false,
		},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No data provided"})
		return
	}
	question := strings.TrimSpace(payload["question"])

	s.mu.Lock()
	s.questions = append(s.questions, question)
	ready := s.ready
	company := s.companyName
	s.mu.Unlock()

	if !ready {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Please create a chatbot first by providing a company URL",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"response":         fmt.Sprintf("%s says: you asked %q", company, question),
		"response_time_ms": 42,
		"cached":           false,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := map[string]any{"ready": s.ready}
	if s.ready {
		body["company_name"] = s.companyName
		body["website_url"] = s.websiteURL
		body["company_id"] = 1
	} else {
		body["company_name"] = nil
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleDiagnostic(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
