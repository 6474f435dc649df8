package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"capsule-service/internal/models"
)

// CreateEscalationEvent appends one escalation audit row. Events are
// never updated or deleted.
func (d *DB) CreateEscalationEvent(ctx context.Context, e models.EscalationEvent) error {
	notified, err := json.Marshal(e.GuardiansNotified)
	if err != nil {
		return fmt.Errorf("failed to encode notified guardians: %w", err)
	}

	query := `
        INSERT INTO escalation_events (
            id, user_id, tier, level, guardians_notified, source, activated_by, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = d.Pool.Exec(ctx, query,
		e.ID, e.UserID, e.Tier, e.Level, notified, e.Source, e.ActivatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escalation event: %w", err)
	}
	return nil
}

func (d *DB) GetEscalationEventsByUserID(ctx context.Context, userID uuid.UUID) ([]models.EscalationEvent, error) {
	query := `
        SELECT id, user_id, tier, level, guardians_notified, source, activated_by, created_at
        FROM escalation_events
        WHERE user_id = $1
        ORDER BY created_at DESC`
	rows, err := d.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation events for user %s: %w", userID, err)
	}
	defer rows.Close()

	var events []models.EscalationEvent
	for rows.Next() {
		var e models.EscalationEvent
		var id, uid pgtype.UUID
		var notified []byte
		err := rows.Scan(&id, &uid, &e.Tier, &e.Level, &notified, &e.Source, &e.ActivatedBy, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation event: %w", err)
		}
		e.ID = uuid.UUID(id.Bytes)
		e.UserID = uuid.UUID(uid.Bytes)
		if len(notified) > 0 {
			if err := json.Unmarshal(notified, &e.GuardiansNotified); err != nil {
				return nil, fmt.Errorf("failed to decode notified guardians: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
