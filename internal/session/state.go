package session

import (
	"strings"
	"sync"
)

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Ready       bool
	CompanyName string
	WebsiteURL  string
}

// State is the client's belief that a backend chatbot exists and is ready to
// answer for a company. It only moves from not-ready to ready; a failed call
// never clears it.
type State struct {
	mu          sync.RWMutex
	ready       bool
	companyName string
	websiteURL  string
}

func New() *State {
	return &State{}
}

// MarkReady records a usable session. An empty websiteURL keeps the previous
// one, since the status endpoint may omit it.
func (s *State) MarkReady(companyName, websiteURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.companyName = strings.TrimSpace(companyName)
	if u := strings.TrimSpace(websiteURL); u != "" {
		s.websiteURL = u
	}
}

func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *State) CompanyName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companyName
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Ready: s.ready, CompanyName: s.companyName, WebsiteURL: s.websiteURL}
}
