package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTimeout is used when the registry is built with a zero timeout
const DefaultIdleTimeout = 2 * time.Hour

// ExpireFunc is called for every session dropped by ExpireIdle
type ExpireFunc func(st *State)

// Registry holds the live sessions in memory
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*State
	idleTimeout time.Duration
	onExpire    ExpireFunc
}

// NewRegistry creates a session registry
func NewRegistry(idleTimeout time.Duration, onExpire ExpireFunc) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		sessions:    make(map[string]*State),
		idleTimeout: idleTimeout,
		onExpire:    onExpire,
	}
}

// ValidID reports whether id has the shape of a session ID
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// NewID returns a new random session ID
func NewID() string {
	return uuid.New().String()
}

// Get returns a live session
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	return st, ok
}

// GetOrCreate returns the session for id, creating one when id is unknown.
// An empty or malformed id gets a freshly generated one. The second return
// value reports whether a new session was created.
func (r *Registry) GetOrCreate(id string) (*State, bool) {
	if ValidID(id) {
		r.mu.RLock()
		st, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			st.Touch()
			return st, false
		}
	} else {
		id = NewID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.sessions[id]; ok {
		st.Touch()
		return st, false
	}

	st := NewState(id)
	r.sessions[id] = st
	return st, true
}

// Remove drops a session without calling the expire hook
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ExpireIdle drops sessions idle since before now-idleTimeout. Sessions with
// a generation in flight are kept.
func (r *Registry) ExpireIdle(now time.Time) int {
	cutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*State
	for id, st := range r.sessions {
		if st.Generating() || st.LastSeen().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		expired = append(expired, st)
	}
	r.mu.Unlock()

	for _, st := range expired {
		if r.onExpire != nil {
			r.onExpire(st)
		}
	}

	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Msg("Idle sessions expired")
	}
	return len(expired)
}

// Drain drops every session and returns the image paths they still held
func (r *Registry) Drain() []string {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*State)
	r.mu.Unlock()

	var paths []string
	for _, st := range sessions {
		if p := st.TakeImagePath(); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
