// Package session holds conversation sessions and serializes access to each of them.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// DefaultTTL is how long a session may stay inactive before the sweeper removes it.
const DefaultTTL = 24 * time.Hour

// entry guards one session. sem is a one-slot semaphore: holding it grants
// exclusive access to session.
type entry struct {
	sem     chan struct{}
	session *models.ConversationSession
	// deleted is set, while holding sem, when the entry leaves the store.
	deleted bool
}

func newEntry(s *models.ConversationSession) *entry {
	return &entry{sem: make(chan struct{}, 1), session: s}
}

func (e *entry) release() {
	<-e.sem
}

// Store owns every ConversationSession. Sessions are only handed out as
// copies; mutation goes through Update, which runs with exclusive access to
// the session and commits all or nothing.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the inactivity window after which sessions expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = utils.LoggerOrNop(l)
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// acquire waits for exclusive access to the session id. With create set, a
// missing session is created in the New state and created reports it.
func (s *Store) acquire(ctx context.Context, id string, create bool) (e *entry, created bool, err error) {
	for {
		s.mu.Lock()
		e, created = s.entries[id], false
		if e == nil {
			if !create {
				s.mu.Unlock()
				return nil, false, fmt.Errorf("session %q: %w", id, models.ErrUnknownSession)
			}
			if ctx.Err() != nil {
				s.mu.Unlock()
				return nil, false, busyError(ctx, id)
			}
			e = newEntry(models.NewConversationSession(id, s.now()))
			s.entries[id] = e
			created = true
			s.logger.Debug("session created", zap.String("session_id", id))
		}
		s.mu.Unlock()

		select {
		case e.sem <- struct{}{}:
		default:
			// Another caller got to the entry first; a new one is theirs now.
			created = false
			select {
			case e.sem <- struct{}{}:
			case <-ctx.Done():
				return nil, false, busyError(ctx, id)
			}
		}
		if !e.deleted {
			return e, created, nil
		}
		// Removed while we waited; look it up again.
		e.release()
	}
}

func busyError(ctx context.Context, id string) error {
	return fmt.Errorf("session %q: %w: %w", id, models.ErrSessionBusy, ctx.Err())
}

// Update runs fn with exclusive access to a working copy of the session,
// creating the session if it does not exist. The copy replaces the stored
// session only when fn returns nil; a session created for a failed fn is
// removed again, so a failed update leaves the store as it was. The returned
// session is a snapshot of the committed state.
func (s *Store) Update(ctx context.Context, id string, fn func(*models.ConversationSession) error) (*models.ConversationSession, error) {
	e, created, err := s.acquire(ctx, id, true)
	if err != nil {
		return nil, err
	}
	defer e.release()

	working := e.session.Clone()
	if err := fn(working); err != nil {
		if created {
			s.remove(id, e)
			return nil, err
		}
		return e.session.Clone(), err
	}
	working.LastActivity = s.now()
	e.session = working
	return working.Clone(), nil
}

// Get returns a snapshot of the session. It does not create sessions.
func (s *Store) Get(ctx context.Context, id string) (*models.ConversationSession, error) {
	e, _, err := s.acquire(ctx, id, false)
	if err != nil {
		return nil, err
	}
	defer e.release()
	return e.session.Clone(), nil
}

// Delete removes the session, waiting for any turn in progress on it.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, _, err := s.acquire(ctx, id, false)
	if err != nil {
		return err
	}
	defer e.release()
	s.remove(id, e)
	s.logger.Debug("session deleted", zap.String("session_id", id))
	return nil
}

// remove drops e from the map. The caller holds e.sem.
func (s *Store) remove(id string, e *entry) {
	e.deleted = true
	s.mu.Lock()
	if s.entries[id] == e {
		delete(s.entries, id)
	}
	s.mu.Unlock()
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
