package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("luakit.server")

// ErrSessionNotFound indicates the requested session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is a named Lua session served over RPC. Its bridge.Session lives
// on Worker's goroutine and is only reached through Worker.Do.
type Session struct {
	ID      string
	Name    string
	Worker  *Worker
	Created time.Time

	lastUsed atomic.Int64 // unix nanoseconds
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed returns when the session was last looked up.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SessionStore manages RPC sessions, one worker goroutine each.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   atomic.Uint64
	factory  SessionFactory
}

// NewSessionStore creates a new session store. Every session gets a fresh
// bridge.Session from factory.
func NewSessionStore(factory SessionFactory) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) (*Session, error) {
	w, err := NewWorker(s.factory)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("s-%d", s.nextID.Add(1))
	session := &Session{
		ID:      id,
		Name:    name,
		Worker:  w,
		Created: time.Now(),
	}
	session.touch()

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	log.Debugf("created session %s %q", id, name)
	return session, nil
}

// Get retrieves a session by ID and marks it used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		session.touch()
	}
	return session, ok
}

// Destroy removes a session and destroys its bridge.Session on the
// session's own goroutine. Reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	session.Worker.Stop()
	log.Debugf("destroyed session %s", id)
	return true
}

// List returns every live session ordered by ID number.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if len(list[i].ID) != len(list[j].ID) {
			return len(list[i].ID) < len(list[j].ID)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep destroys sessions that haven't been used within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var idle []*Session
	for id, session := range s.sessions {
		if session.LastUsed().Before(cutoff) {
			idle = append(idle, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range idle {
		session.Worker.Stop()
	}
	if len(idle) > 0 {
		log.Infof("swept %d idle sessions", len(idle))
	}
	return len(idle)
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close destroys every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range all {
		session.Worker.Stop()
	}
}
