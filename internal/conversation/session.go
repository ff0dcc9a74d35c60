package conversation

import "sync"

// SessionState is a point-in-time view of the tracker.
type SessionState struct {
	Token         string
	HasToken      bool
	ExchangeCount int
}

// SessionTracker holds the service-issued session token and the exchange
// count the service reports. Values only ever come from service responses.
type SessionTracker struct {
	mu       sync.RWMutex
	token    string
	hasToken bool
	count    int
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{}
}

// Current returns the token (ok=false when none was issued yet) and the
// last recorded exchange count.
func (s *SessionTracker) Current() (token string, ok bool, count int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.hasToken, s.count
}

func (s *SessionTracker) State() SessionState {
	token, ok, count := s.Current()
	return SessionState{Token: token, HasToken: ok, ExchangeCount: count}
}

// Adopt sets the token if none is held yet. The first token seen is
// canonical for the conversation; later calls are no-ops. Empty tokens are
// ignored. Reports whether the token was adopted.
func (s *SessionTracker) Adopt(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasToken {
		return false
	}
	s.token = token
	s.hasToken = true
	return true
}

// RecordCount overwrites the exchange count. Monotonicity is the service's
// contract and is not enforced here.
func (s *SessionTracker) RecordCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = n
}

func (s *SessionTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.hasToken = false
	s.count = 0
}
