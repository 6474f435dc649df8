package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"capsule-service/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const capsuleColumns = `
	id, user_id, title, content_type, body, attachments, delivery_method,
	recipient, backup_recipients, privacy_level, jurisdiction, language,
	trigger_type, trigger_date, inactivity_days, event_key, status,
	created_at, scheduled_for, sent_at`

func (d *DB) CreateCapsule(ctx context.Context, c models.Capsule) error {
	attachments, err := json.Marshal(c.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}
	recipient, err := json.Marshal(c.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encode recipient: %w", err)
	}
	backups, err := json.Marshal(c.BackupRecipients)
	if err != nil {
		return fmt.Errorf("failed to encode backup recipients: %w", err)
	}

	query := `
        INSERT INTO capsules (
            id, user_id, title, content_type, body, attachments, delivery_method,
            recipient, backup_recipients, privacy_level, jurisdiction, language,
            trigger_type, trigger_date, inactivity_days, event_key, status, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = d.Pool.Exec(ctx, query,
		c.ID, c.UserID, c.Title, c.ContentType, c.Body, attachments, c.DeliveryMethod,
		recipient, backups, c.PrivacyLevel, c.Jurisdiction, c.Language,
		c.TriggerType, c.TriggerDate, c.InactivityDays, c.EventKey, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create capsule: %w", err)
	}
	return nil
}

func scanCapsule(row rowScanner) (models.Capsule, error) {
	var c models.Capsule
	var id, userID pgtype.UUID
	var attachments, recipient, backups []byte

	err := row.Scan(
		&id, &userID, &c.Title, &c.ContentType, &c.Body, &attachments,
		&c.DeliveryMethod, &recipient, &backups, &c.PrivacyLevel,
		&c.Jurisdiction, &c.Language, &c.TriggerType, &c.TriggerDate,
		&c.InactivityDays, &c.EventKey, &c.Status, &c.CreatedAt,
		&c.ScheduledFor, &c.SentAt,
	)
	if err != nil {
		return models.Capsule{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	c.UserID = uuid.UUID(userID.Bytes)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return models.Capsule{}, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	if len(recipient) > 0 {
		if err := json.Unmarshal(recipient, &c.Recipient); err != nil {
			return models.Capsule{}, fmt.Errorf("failed to decode recipient: %w", err)
		}
	}
	if len(backups) > 0 {
		if err := json.Unmarshal(backups, &c.BackupRecipients); err != nil {
			return models.Capsule{}, fmt.Errorf("failed to decode backup recipients: %w", err)
		}
	}
	return c, nil
}

func (d *DB) GetCapsule(ctx context.Context, id uuid.UUID) (models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE id = $1`
	c, err := scanCapsule(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Capsule{}, fmt.Errorf("capsule %s: %w", id, ErrNotFound)
		}
		return models.Capsule{}, fmt.Errorf("failed to get capsule %s: %w", id, err)
	}
	return c, nil
}

func (d *DB) GetCapsulesByUserID(ctx context.Context, userID uuid.UUID) ([]models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := d.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get capsules for user %s: %w", userID, err)
	}
	defer rows.Close()

	var capsules []models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, c)
	}
	return capsules, rows.Err()
}

// GetScheduledCapsules returns every scheduled capsule whose trigger is
// polled by the sweep. guardian_activated capsules are excluded: they
// fire only on an explicit activation call.
func (d *DB) GetScheduledCapsules(ctx context.Context) ([]models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + `
        FROM capsules
        WHERE status = 'scheduled' AND trigger_type <> 'guardian_activated'
        ORDER BY created_at`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled capsules: %w", err)
	}
	defer rows.Close()

	var capsules []models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, c)
	}
	return capsules, rows.Err()
}

// TransitionCapsule moves a capsule from one status to another with a
// conditional update. Returns false when the capsule was not in the
// expected state, which callers treat as a concurrent transition.
func (d *DB) TransitionCapsule(ctx context.Context, id uuid.UUID, from, to string, scheduledFor *time.Time) (bool, error) {
	query := `
        UPDATE capsules
        SET status = $1,
            scheduled_for = COALESCE($2, scheduled_for),
            sent_at = CASE WHEN $1 = 'sent' THEN $3 ELSE sent_at END
        WHERE id = $4 AND status = $5`
	result, err := d.Pool.Exec(ctx, query, to, scheduledFor, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition capsule %s %s->%s: %w", id, from, to, err)
	}
	return result.RowsAffected() > 0, nil
}

// ClaimForDelivery marks a scheduled capsule as claimed by a delivery
// run. The WHERE clause is the optimistic guard: only one caller can
// ever claim a given capsule, so a channel adapter is invoked at most
// once per claim.
func (d *DB) ClaimForDelivery(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
        UPDATE capsules
        SET delivery_claimed_at = $1
        WHERE id = $2 AND status = 'scheduled' AND delivery_claimed_at IS NULL`
	result, err := d.Pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim capsule %s: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}

// ReleaseDeliveryClaim clears the claim so an explicitly re-scheduled
// capsule can be delivered again.
func (d *DB) ReleaseDeliveryClaim(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE capsules SET delivery_claimed_at = NULL WHERE id = $1`
	if _, err := d.Pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release claim on capsule %s: %w", id, err)
	}
	return nil
}

// RearmDeadMansSwitchCapsules pushes scheduled_for forward by the full
// inactivity interval for every scheduled dead_mans_switch capsule of a
// user. Called on check-in.
func (d *DB) RearmDeadMansSwitchCapsules(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	query := `
        UPDATE capsules
        SET scheduled_for = $1::timestamptz + make_interval(days => inactivity_days),
            delivery_claimed_at = NULL
        WHERE user_id = $2 AND trigger_type = 'dead_mans_switch' AND status = 'scheduled'`
	result, err := d.Pool.Exec(ctx, query, now.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to re-arm capsules for user %s: %w", userID, err)
	}
	return result.RowsAffected(), nil
}
