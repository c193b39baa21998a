// Package storage keeps the live editing sessions of the serve command.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/gesture"
	"github.com/mediprint/compositor/internal/preview"
)

// Session is one project opened for preview. It owns its orchestrator, so
// concurrent sessions never share a render cache.
type Session struct {
	ID        string
	ProjectID string
	// Result is the project as parsed when the session opened. Edits go to
	// Preview, so Result.Designs is not updated; use Project for the
	// current revision.
	Result    *designdata.Result
	Preview   *preview.Orchestrator
	View      *gesture.Controller
	CreatedAt time.Time

	// mu serializes read-modify-write edits made through
	// Preview.UpdateDesign.
	mu sync.Mutex
}

// Project returns the parsed project with its designs replaced by the
// current revision held by Preview.
func (s *Session) Project() *designdata.Result {
	res := *s.Result
	res.Designs = s.Preview.Designs()
	return &res
}

// Lock serializes design edits.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// GetAll returns every session ordered by creation time.
func (s *SessionStore) GetAll() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete removes a session and tears down its render cache.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) bool {
	s.mu.Lock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if exists && session.Preview != nil {
		session.Preview.Close(ctx)
	}
	return exists
}

// CloseAll tears down every session.
func (s *SessionStore) CloseAll(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		if session.Preview != nil {
			session.Preview.Close(ctx)
		}
	}
}
