// Package session keeps the in-memory conversation record of every chat.
package session

import (
	"sync"

	"pdfbot/internal/models"
)

// Store maps chat ids to their sessions. The map is shared between the
// dispatcher workers; a single session is only ever mutated by the worker that
// currently owns its chat. Other goroutines read the published states only.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*models.Session
	states   map[int64]models.State
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*models.Session),
		states:   make(map[int64]models.State),
	}
}

// Get returns the chat's session, creating an idle one on first use.
func (s *Store) Get(chatID int64) *models.Session {
	s.mu.RLock()
	se, ok := s.sessions[chatID]
	s.mu.RUnlock()
	if ok {
		return se
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if se, ok := s.sessions[chatID]; ok {
		return se
	}
	se = models.NewSession(chatID)
	s.sessions[chatID] = se
	s.states[chatID] = se.State
	return se
}

// Publish records the session's current state for readers outside the
// owning worker. Call it from the worker once an event has been applied.
func (s *Store) Publish(se *models.Session) {
	s.mu.Lock()
	s.states[se.ChatID] = se.State
	s.mu.Unlock()
}

// Len reports how many chats have a session.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CountByState counts chats per published state. Used by the health endpoint.
func (s *Store) CountByState() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, st := range s.states {
		out[st.String()]++
	}
	return out
}
