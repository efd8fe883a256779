// Package clientstate keeps the status snapshot served on /status.
package clientstate

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// State is a snapshot of the subscriber. All fields are updated together so
// callers always observe a consistent view.
type State struct {
	Status        string            `json:"status"`
	Connected     bool              `json:"connected"`
	URL           string            `json:"url,omitempty"`
	Subscriptions map[string]string `json:"subscriptions,omitempty"`
	Messages      uint64            `json:"messages"`
	LastError     string            `json:"last_error,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Store defines how the state is persisted. Implementations may store
// state in memory or in an external service such as Redis.
type Store interface {
	Load() State
	Store(State)
}

var (
	mu     sync.Mutex
	active Store = NewMemoryStore()
)

// UseStore replaces the active Store. Nil is ignored.
func UseStore(s Store) {
	if s == nil {
		return
	}
	mu.Lock()
	active = s
	mu.Unlock()
}

// Get returns the current snapshot.
func Get() State {
	mu.Lock()
	s := active
	mu.Unlock()
	return s.Load()
}

// Update applies fn to the current snapshot and stores the result.
func Update(fn func(*State)) State {
	mu.Lock()
	defer mu.Unlock()
	st := active.Load()
	st.Subscriptions = maps.Clone(st.Subscriptions)
	fn(&st)
	st.UpdatedAt = time.Now().UTC()
	active.Store(st)
	return st
}

// SetStatus records the session status and whether the transport is up.
func SetStatus(status string, connected bool) {
	Update(func(s *State) {
		s.Status = status
		s.Connected = connected
		if !connected {
			s.Subscriptions = nil
		}
	})
}

// SetError records the most recent error.
func SetError(err error) {
	if err == nil {
		return
	}
	Update(func(s *State) { s.LastError = err.Error() })
}

// memoryStore implements Store using an atomic.Value.
type memoryStore struct {
	v atomic.Value
}

// NewMemoryStore returns a memory-backed Store initialized to "idle".
func NewMemoryStore() *memoryStore {
	ms := &memoryStore{}
	ms.v.Store(State{Status: "idle"})
	return ms
}

func (m *memoryStore) Load() State {
	if st, ok := m.v.Load().(State); ok {
		return st
	}
	return State{Status: "unknown"}
}

func (m *memoryStore) Store(s State) {
	m.v.Store(s)
}
