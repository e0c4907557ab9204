package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chadiek/interview-voice/internal/agent"
)

// ErrSessionExists is returned when a requested id is already live.
var ErrSessionExists = errors.New("sessions: id already live")

// Session is the state of one connected client. It is owned by the Registry
// and discarded when removed.
type Session struct {
	ID           string
	Conversation *agent.Conversation
	Conn         agent.Conn
	Started      time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Context is cancelled when the session is removed or the registry shuts down.
func (s *Session) Context() context.Context { return s.ctx }

// Registry maps live session ids to their state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup

	newConversation func() *agent.Conversation
}

// NewRegistry builds a registry; newConversation seeds each session's history.
func NewRegistry(newConversation func() *agent.Conversation) *Registry {
	return &Registry{
		sessions:        make(map[string]*Session),
		newConversation: newConversation,
	}
}

// Create registers a session for conn. An empty id gets a fresh UUID; an id
// that is already live is rejected. The session context derives from parent.
func (r *Registry) Create(parent context.Context, id string, conn agent.Conn) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:           id,
		Conversation: r.newConversation(),
		Conn:         conn,
		Started:      time.Now(),
		ctx:          ctx,
		cancel:       cancel,
	}

	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	r.sessions[id] = s
	r.wg.Add(1)
	r.mu.Unlock()
	return s, nil
}

// Remove tears the session down exactly once: its context is cancelled and
// its state dropped. Removing an unknown or already removed id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s := r.sessions[id]
	r.mu.Unlock()
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		r.mu.Lock()
		if r.sessions[id] == s {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CancelAll cancels every live session and reports how many there were.
// Sessions stay registered until their handlers call Remove.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, s := range r.sessions {
		cancels = append(cancels, s.cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Wait blocks until every session has been removed or ctx ends. It reports
// whether the registry drained.
func (r *Registry) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
