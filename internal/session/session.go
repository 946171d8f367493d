package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Citation points a user at the chunk that grounded an answer. It
// references the source, never owns it.
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Snippet string `json:"snippet"`
}

// Turn is one conversation entry. Assistant turns carry the citations that
// were returned with them.
type Turn struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Session is the isolation boundary: one user's documents, index, persona
// and conversation history. All state lives in process memory.
//
// A session serializes its own operations: callers take Lock for the whole
// upload/chat/reset critical section, including any external adapter calls,
// so concurrent requests against the same session never interleave while
// different sessions proceed independently.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	// eviction deadline in unix nanos, zero when eviction is disabled.
	// Atomic so lookups refreshing it never race the sweeper's read and
	// never have to wait on a session busy in a long upload or chat.
	expiresAt atomic.Int64

	persona string
	index   *Index
	turns   []Turn
}

func newSession(id string, ttl time.Duration) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		index:     NewIndex(),
	}
	s.touch(ttl)
	return s
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Index returns the session's similarity index. Callers must hold the
// session lock.
func (s *Session) Index() *Index { return s.index }

func (s *Session) Persona() string { return s.persona }

// SetPersona attaches the persona once. It is read-only for the rest of
// the session's lifetime; attempting to change it is an input error.
func (s *Session) SetPersona(persona string) error {
	if s.persona == "" || s.persona == persona {
		s.persona = persona
		return nil
	}
	return apperr.New(apperr.InvalidInput, "persona is already set for this session")
}

// AppendTurn records a completed exchange entry. Memory is append-only;
// failed chat calls never reach this.
func (s *Session) AppendTurn(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.turns = append(s.turns, t)
}

// Turns returns the full conversation memory.
func (s *Session) Turns() []Turn { return s.turns }

// History returns up to the last n turns, for bounded prompt composition.
func (s *Session) History(n int) []Turn {
	if n <= 0 || len(s.turns) <= n {
		return s.turns
	}
	return s.turns[len(s.turns)-n:]
}

// Reset clears index, memory and persona in place. The id stays valid.
func (s *Session) Reset() {
	s.index = NewIndex()
	s.turns = nil
	s.persona = ""
}

func (s *Session) touch(ttl time.Duration) {
	if ttl > 0 {
		s.expiresAt.Store(time.Now().Add(ttl).UnixNano())
	}
}

func (s *Session) expired(now time.Time) bool {
	deadline := s.expiresAt.Load()
	return deadline != 0 && deadline < now.UnixNano()
}
