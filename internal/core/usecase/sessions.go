package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

// SessionRegistry hands out explicit session handles. Each session caches one answerer
// per namespace; nothing is shared between sessions except the index store behind the loader.
type SessionRegistry struct {
	loader  ports.AnswererLoader
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(loader ports.AnswererLoader, idleTTL time.Duration) *SessionRegistry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &SessionRegistry{
		loader:   loader,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Session returns the handle for id, creating it when needed. An empty id starts a new session.
func (r *SessionRegistry) Session(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{id: id, registry: r, bindings: map[string]ports.Answerer{}}
		r.sessions[id] = s
	}
	s.touch(r.now())
	return s
}

// InvalidateNamespace drops the cached answerer for namespace in every session.
func (r *SessionRegistry) InvalidateNamespace(namespace string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.forget(namespace)
	}
}

// Prune removes sessions idle for longer than the TTL and returns how many were removed.
func (r *SessionRegistry) Prune() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeenAt().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor prunes idle sessions every interval until ctx is done.
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune()
		}
	}
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type Session struct {
	id       string
	registry *SessionRegistry

	mu       sync.Mutex
	bindings map[string]ports.Answerer
	lastSeen time.Time
}

func (s *Session) ID() string { return s.id }

// Answerer returns the cached answerer for namespace, loading it on first use.
func (s *Session) Answerer(ctx context.Context, namespace string) (ports.Answerer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.registry.now()

	if a, ok := s.bindings[namespace]; ok {
		return a, nil
	}
	a, err := s.registry.loader.Open(ctx, namespace)
	if err != nil {
		return nil, err
	}
	s.bindings[namespace] = a
	return a, nil
}

// Bind replaces the cached answerer for its namespace, typically after an ingest in this session.
func (s *Session) Bind(a ports.Answerer) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[a.Namespace()] = a
	s.lastSeen = s.registry.now()
}

func (s *Session) Ask(ctx context.Context, namespace, question string) (*domain.AnswerResult, error) {
	a, err := s.Answerer(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return a.Answer(ctx, question)
}

func (s *Session) forget(namespace string) {
	s.mu.Lock()
	delete(s.bindings, namespace)
	s.mu.Unlock()
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	s.lastSeen = at
	s.mu.Unlock()
}

func (s *Session) lastSeenAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
