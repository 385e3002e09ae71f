package db

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/ljoukov/voice-thinker/internal/session"
)

// ArchiveSession stores the final history of an ended session. Ending the
// same id twice keeps the latest snapshot.
func (db *DB) ArchiveSession(ctx context.Context, s *session.Session) error {
	messages, err := sonic.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	query := `
		INSERT INTO voice_sessions (id, turns, messages, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			turns = EXCLUDED.turns,
			messages = EXCLUDED.messages,
			ended_at = now()
	`

	if _, err := db.ExecContext(ctx, query, s.ID, s.Turns, messages, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}
