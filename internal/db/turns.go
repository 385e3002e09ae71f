package db

import (
	"context"
	"fmt"

	"github.com/ljoukov/voice-thinker/internal/models"
)

func (db *DB) RecordTurn(ctx context.Context, rec *models.TurnRecord) error {
	query := `
		INSERT INTO voice_turns (
			id, session_id, transcript, reply, mode, outcome, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := db.ExecContext(
		ctx, query,
		rec.ID, rec.SessionID, rec.Transcript, rec.Reply, rec.Mode,
		rec.Outcome, rec.Error, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// ListSessionTurns returns the archived turns of a session, oldest first.
func (db *DB) ListSessionTurns(ctx context.Context, sessionID string) ([]models.TurnRecord, error) {
	query := `
		SELECT
			id, session_id, transcript, reply, mode, outcome, error, duration_ms, created_at
		FROM voice_turns
		WHERE session_id = $1
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []models.TurnRecord{}
	for rows.Next() {
		var t models.TurnRecord
		err := rows.Scan(
			&t.ID, &t.SessionID, &t.Transcript, &t.Reply, &t.Mode,
			&t.Outcome, &t.Error, &t.DurationMs, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}
