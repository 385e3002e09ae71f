// Package session holds per-conversation history and its lifecycle:
// creation on first use, a bounded message window, idle eviction and
// an archive hook when a session ends.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/ljoukov/voice-thinker/internal/models"
)

// DefaultID is used by requests that do not name a session. All such
// requests share one conversation, like a single-user voice device would.
const DefaultID = "default"

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string           `json:"id"`
	Messages  []models.Message `json:"messages"`
	Turns     int              `json:"turns"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func New(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

func (s *Session) AppendUser(content string) {
	s.Messages = append(s.Messages, models.Message{Role: models.RoleUser, Content: content})
}

func (s *Session) AppendAssistant(content string) {
	s.Messages = append(s.Messages, models.Message{Role: models.RoleAssistant, Content: content})
}

// History returns a copy of the messages, safe to hand to a provider.
func (s *Session) History() []models.Message {
	out := make([]models.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Trim drops the oldest messages so at most max remain, then keeps dropping
// until the window starts with a user message.
func (s *Session) Trim(max int) int {
	if max <= 0 || len(s.Messages) <= max {
		return 0
	}
	drop := len(s.Messages) - max
	for drop < len(s.Messages) && s.Messages[drop].Role != models.RoleUser {
		drop++
	}
	s.Messages = append([]models.Message(nil), s.Messages[drop:]...)
	return drop
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = s.History()
	return &c
}

// Store persists sessions between turns.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// IdleSince lists sessions not updated since cutoff. Stores that expire
	// keys on their own may return nothing.
	IdleSince(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}

// Archiver receives sessions as they end.
type Archiver interface {
	ArchiveSession(ctx context.Context, s *Session) error
}
