package stubserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange is one remembered user/assistant round trip.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

type session struct {
	createdAt time.Time
	history   []Exchange
}

// Store keeps sessions in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewStore() *Store {
	return &Store{sessions: map[string]*session{}}
}

// Resolve returns id when it names a known session, otherwise a new session
// is created and its id returned.
func (s *Store) Resolve(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, ok := s.sessions[id]; ok {
			return id, false
		}
	}
	fresh := uuid.NewString()
	s.sessions[fresh] = &session{createdAt: time.Now().UTC()}
	return fresh, true
}

// Append records an exchange and returns the session's exchange count.
func (s *Store) Append(id string, ex Exchange) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{createdAt: time.Now().UTC()}
		s.sessions[id] = sess
	}
	sess.history = append(sess.history, ex)
	return len(sess.history)
}

// History returns a copy of the exchanges for id, or nil.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Exchange, len(sess.history))
	copy(out, sess.history)
	return out
}

func (s *Store) Count(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return len(sess.history)
	}
	return 0
}

// Sessions lists session ids, oldest first.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.sessions[ids[i]], s.sessions[ids[j]]
		if a.createdAt.Equal(b.createdAt) {
			return ids[i] < ids[j]
		}
		return a.createdAt.Before(b.createdAt)
	})
	return ids
}

// Totals returns the number of stored exchanges and sessions.
func (s *Store) Totals() (exchanges int, sessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		exchanges += len(sess.history)
	}
	return exchanges, len(s.sessions)
}
