package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
)

// Store is the process-wide session registry. Its lock only guards the
// map; it is never held across an adapter call, so work in one session
// cannot stall another.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates an empty registry. ttl zero means sessions are never
// evicted and accumulate until process exit.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create allocates a fresh, empty session under a new unguessable id.
func (st *Store) Create() *Session {
	sess := newSession(uuid.NewString(), st.ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.id] = sess
	return sess
}

// Get looks a session up by id and refreshes its eviction deadline.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.SessionNotFound, "invalid session_id: %s", id)
	}
	sess.touch(st.ttl)
	return sess, nil
}

// Reset clears the session in place; the id stays valid. Returns false
// when the id is unknown, which callers may treat as already reset.
func (st *Store) Reset(id string) bool {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return false
	}
	sess.Lock()
	defer sess.Unlock()
	sess.Reset()
	return true
}

// Len reports how many sessions are registered.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops every expired session and reports how many went.
func (st *Store) Sweep() int {
	now := time.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, sess := range st.sessions {
		if sess.expired(now) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// StartSweeper runs eviction sweeps on a cron schedule until stop closes.
// It is a no-op when the store has no TTL.
func (st *Store) StartSweeper(cronSpec string, stop <-chan struct{}) error {
	if st.ttl <= 0 {
		return nil
	}
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid sessions.sweep_cron %q: %w", cronSpec, err)
	}
	go func() {
		next := expr.Next(time.Now())
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				if now.Before(next) {
					continue
				}
				if n := st.Sweep(); n > 0 {
					log.Printf("[SESSIONS] evicted %d expired sessions", n)
				}
				next = expr.Next(now)
			}
		}
	}()
	return nil
}
