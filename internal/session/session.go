// Package session tracks the one-session-per-client-identifier registry
// from spec.md §4.5: each connected client owns at most one open database
// handle, keyed by its connection identifier. Modeled on the teacher's
// auth/rate_limit.go mutex+map shape, generalized from attempt-counters to
// session records.
package session

import (
	"sync"

	"github.com/kbarnes/sqlited/internal/dbengine"
	"github.com/kbarnes/sqlited/internal/writelock"
)

// ClientID identifies one connected client socket — its fd, shared with
// netio and writelock.HolderID.
type ClientID int

// Session is the per-client state: the database handle it connected to
// and the retry parameters it requested.
type Session struct {
	ClientID ClientID
	Path     string
	Handle   *dbengine.Handle
}

// Registry maps client identifiers to their open session, one-to-one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ClientID]*Session
	writers  *writelock.Controller
}

// NewRegistry returns an empty registry sharing the given write-slot
// controller, so Remove can release the slot on disconnect.
func NewRegistry(writers *writelock.Controller) *Registry {
	return &Registry{
		sessions: make(map[ClientID]*Session),
		writers:  writers,
	}
}

// Get returns the session for id, if any.
func (r *Registry) Get(id ClientID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Put registers s under its ClientID, replacing any prior session for
// that id without closing it — callers check Get first per spec.md §4.5's
// idempotent-reconnect rule.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ClientID] = s
}

// Remove deletes the session for id, releasing the write slot if it held
// one and closing its database handle. Safe to call on an id with no
// session.
func (r *Registry) Remove(id ClientID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.writers.Release(writelock.HolderID(id))
	_ = s.Handle.Close()
}

// RemoveByPath erases every session whose database path matches path,
// for spec.md §4.5's `drop` endpoint, which "erase[s] every session in
// the registry whose path matches" rather than looking up by client id.
func (r *Registry) RemoveByPath(path string) []ClientID {
	r.mu.Lock()
	var matched []*Session
	for id, s := range r.sessions {
		if s.Path == path {
			matched = append(matched, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]ClientID, len(matched))
	for i, s := range matched {
		ids[i] = s.ClientID
		r.writers.Release(writelock.HolderID(s.ClientID))
		_ = s.Handle.Close()
	}
	return ids
}
