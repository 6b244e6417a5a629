// Package registry maps charge-point identifiers to their live sessions. One
// process-scoped instance is constructed at startup and shared by the
// WebSocket accept loop and the REST command surface.
package registry

import (
	"sync"

	"chargelink/internal/session"
)

// Registry is the authoritative map of connected charge points. It holds no
// persistent state and is rebuilt empty on restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

// Register stores the session under its charge-point id. If a session already
// holds the id (e.g. a reconnect before the old transport noticed), it is
// evicted and returned so the caller can close it and fail its pending calls.
func (r *Registry) Register(id string, s *session.Session) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := r.sessions[id]
	r.sessions[id] = s
	if evicted == s {
		return nil
	}
	return evicted
}

// Remove deletes the registration only if it still belongs to s. A superseded
// connection's deferred cleanup must not evict its replacement.
func (r *Registry) Remove(id string, s *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[id]; ok && current == s {
		delete(r.sessions, id)
		return true
	}
	return false
}

// Lookup returns the live session for a charge-point id.
func (r *Registry) Lookup(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ListConnected returns the ids of all connected charge points.
func (r *Registry) ListConnected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
