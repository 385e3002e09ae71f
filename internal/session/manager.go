package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is acceptable as a client-supplied session id.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

type Options struct {
	// MaxMessages bounds the history window sent to the chat model.
	MaxMessages int
	// IdleTTL is how long a session may sit untouched before eviction.
	IdleTTL time.Duration
	// Archiver, if set, receives every session as it ends.
	Archiver Archiver
}

// Manager serializes turns per session and owns the session lifecycle.
type Manager struct {
	store    Store
	archiver Archiver
	maxMsgs  int
	idleTTL  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func NewManager(store Store, opts Options) *Manager {
	return &Manager{
		store:    store,
		archiver: opts.Archiver,
		maxMsgs:  opts.MaxMessages,
		idleTTL:  opts.IdleTTL,
		now:      time.Now,
		locks:    make(map[string]*sessionLock),
	}
}

// Create starts a fresh session with a random id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := New(uuid.NewString(), m.now())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	log.Printf("[Session] Created %s", s.ID)
	return s, nil
}

// Get returns a snapshot of a stored session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Acquire locks the session for one turn, loading it or starting it on first
// use. The caller must call release exactly once, after Commit.
func (m *Manager) Acquire(ctx context.Context, id string) (s *Session, release func(), err error) {
	if id == "" {
		id = DefaultID
	}

	release, err = m.lock(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("waiting for session %s: %w", id, err)
	}

	s, err = m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s = New(id, m.now())
		log.Printf("[Session] Started %s", id)
		return s, release, nil
	}
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, release, nil
}

// Commit applies the history window and persists the session.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	if dropped := s.Trim(m.maxMsgs); dropped > 0 {
		log.Printf("[Session] %s: dropped %d oldest messages (window=%d)", s.ID, dropped, m.maxMsgs)
	}
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// End archives and discards a session.
func (m *Manager) End(ctx context.Context, id string) error {
	_, err := m.end(ctx, id, time.Time{})
	return err
}

// EvictIdle ends every session idle for longer than the configured TTL.
// A session touched by a turn while the sweep waited for its lock is kept.
func (m *Manager) EvictIdle(ctx context.Context) (int, error) {
	if m.idleTTL <= 0 {
		return 0, nil
	}

	cutoff := m.now().Add(-m.idleTTL)
	ids, err := m.store.IdleSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	evicted := 0
	for _, id := range ids {
		ended, err := m.end(ctx, id, cutoff)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[Session] Failed to evict %s: %v", id, err)
			continue
		}
		if ended {
			evicted++
		}
	}
	return evicted, nil
}

// end archives and deletes id under its lock. A non-zero idleCutoff skips
// sessions updated at or after it.
func (m *Manager) end(ctx context.Context, id string, idleCutoff time.Time) (bool, error) {
	release, err := m.lock(ctx, id)
	if err != nil {
		return false, fmt.Errorf("waiting for session %s: %w", id, err)
	}
	defer release()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if !idleCutoff.IsZero() && !s.UpdatedAt.Before(idleCutoff) {
		return false, nil
	}

	if m.archiver != nil {
		if err := m.archiver.ArchiveSession(ctx, s); err != nil {
			log.Printf("[Session] Failed to archive %s: %v", id, err)
		}
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	log.Printf("[Session] Ended %s (%d turns, %d messages)", id, s.Turns, len(s.Messages))
	return true, nil
}

func (m *Manager) lock(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.unref(id, l)
			})
		}, nil
	case <-ctx.Done():
		m.unref(id, l)
		return nil, ctx.Err()
	}
}

func (m *Manager) unref(id string, l *sessionLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}
