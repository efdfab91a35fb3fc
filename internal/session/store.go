package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"enrolldash/internal/errors"
	"enrolldash/internal/infrastructure"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// Config controls session lifetime
type Config struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// Listener observes session lifecycle changes.
type Listener interface {
	SessionCreated(id string)
	SessionRemoved(id string)
}

// Store keeps every live session in memory
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loader    DatasetLoader
	config    Config
	logger    *slog.Logger
	listeners []Listener
	now       func() time.Time
}

// NewStore creates an empty store
func NewStore(loader DatasetLoader, config Config, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		loader:   loader,
		config:   config,
		logger:   logger.With(slog.String("component", "session_store")),
		now:      time.Now,
	}
}

// AddListener registers l for create and remove notifications
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Create starts a new empty session
func (s *Store) Create(ctx context.Context) domain.SessionSnapshot {
	sess := newSession(uuid.New().String(), s.now())

	s.mu.Lock()
	s.sessions[sess.id] = sess
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l.SessionCreated(sess.id)
	}
	s.logger.InfoContext(ctx, "session created", slog.String("session_id", sess.id))
	return sess.Snapshot()
}

// Get returns the session and marks it active
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// Snapshot returns a session's current state
func (s *Store) Snapshot(id string) (domain.SessionSnapshot, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Dispatch applies ev to the session and returns the resulting snapshot.
func (s *Store) Dispatch(ctx context.Context, id string, ev events.Event) (domain.SessionSnapshot, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	ctx = infrastructure.WithSessionID(ctx, id)
	start := time.Now()
	snap, err := sess.Apply(ctx, s.loader, ev, s.now(), s.logger)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	s.logger.InfoContext(ctx, "event applied",
		slog.String("event", string(ev.Type)),
		slog.Int64("revision", snap.Revision),
		slog.String("state", string(snap.State)),
		slog.Int("matched_rows", snap.Dashboard.MatchedRows),
		slog.Int("total_rows", snap.Dashboard.TotalRows),
		slog.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	listeners := s.listeners
	s.mu.Unlock()

	if !ok {
		return errors.ErrSessionNotFound
	}
	for _, l := range listeners {
		l.SessionRemoved(id)
	}
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs lists live session ids in sorted order
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep removes sessions idle for longer than IdleTTL and returns their ids.
func (s *Store) Sweep(ctx context.Context) []string {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.config.IdleTTL {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	listeners := s.listeners
	s.mu.Unlock()

	sort.Strings(expired)
	for _, id := range expired {
		for _, l := range listeners {
			l.SessionRemoved(id)
		}
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "idle sessions expired",
			slog.Int("count", len(expired)),
			slog.Int("remaining", s.Len()))
	}
	return expired
}

// Run sweeps on SweepInterval until ctx is cancelled
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
