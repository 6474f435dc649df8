package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"capsule-service/internal/models"
)

// RecordLifeEvent marks a named event as occurred for a user. Repeated
// records of the same key are collapsed.
func (d *DB) RecordLifeEvent(ctx context.Context, e models.LifeEvent) error {
	query := `
        INSERT INTO life_events (id, user_id, event_key, occurred_at, recorded_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, event_key) DO NOTHING`
	_, err := d.Pool.Exec(ctx, query, e.ID, e.UserID, e.EventKey, e.OccurredAt, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record life event: %w", err)
	}
	return nil
}

// GetOccurredEventKeys returns the set of event keys recorded for a
// user, for the trigger evaluator to check against.
func (d *DB) GetOccurredEventKeys(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	rows, err := d.Pool.Query(ctx, `SELECT event_key FROM life_events WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get life events for user %s: %w", userID, err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan life event: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}
