package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"capsule-service/internal/models"
)

const inactivityColumns = `
	user_id, last_sign_in_at, last_check_in, days_inactive, current_tier,
	last_notified_tier, last_escalated_at, escalation_level, updated_at`

func scanInactivityRecord(row rowScanner) (models.InactivityRecord, error) {
	var rec models.InactivityRecord
	var userID pgtype.UUID
	err := row.Scan(
		&userID, &rec.LastSignInAt, &rec.LastCheckIn, &rec.DaysInactive,
		&rec.CurrentTier, &rec.LastNotifiedTier, &rec.LastEscalatedAt,
		&rec.EscalationLevel, &rec.UpdatedAt,
	)
	if err != nil {
		return models.InactivityRecord{}, err
	}
	rec.UserID = uuid.UUID(userID.Bytes)
	return rec, nil
}

func (d *DB) GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error) {
	query := `SELECT ` + inactivityColumns + ` FROM inactivity_records WHERE user_id = $1`
	rec, err := scanInactivityRecord(d.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.InactivityRecord{}, fmt.Errorf("inactivity record for user %s: %w", userID, ErrNotFound)
		}
		return models.InactivityRecord{}, fmt.Errorf("failed to get inactivity record for user %s: %w", userID, err)
	}
	return rec, nil
}

func (d *DB) ListInactivityRecords(ctx context.Context) ([]models.InactivityRecord, error) {
	query := `SELECT ` + inactivityColumns + ` FROM inactivity_records ORDER BY last_check_in`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactivity records: %w", err)
	}
	defer rows.Close()

	var records []models.InactivityRecord
	for rows.Next() {
		rec, err := scanInactivityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inactivity record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CheckIn resets a user's inactivity state. Idempotent: repeated calls
// converge on the same row.
func (d *DB) CheckIn(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
        INSERT INTO inactivity_records (
            user_id, last_sign_in_at, last_check_in, days_inactive, current_tier,
            last_notified_tier, escalation_level, updated_at
        )
        VALUES ($1, $2, $2, 0, 'none', 'none', 0, $2)
        ON CONFLICT (user_id) DO UPDATE
        SET last_sign_in_at = EXCLUDED.last_sign_in_at,
            last_check_in = EXCLUDED.last_check_in,
            days_inactive = 0,
            current_tier = 'none',
            last_notified_tier = 'none',
            last_escalated_at = NULL,
            escalation_level = 0,
            updated_at = EXCLUDED.updated_at`
	if _, err := d.Pool.Exec(ctx, query, userID, at.UTC()); err != nil {
		return fmt.Errorf("failed to record check-in for user %s: %w", userID, err)
	}
	return nil
}

// TouchActivity updates last_sign_in_at from an external activity
// signal. Passive activity never moves the inactivity clock: only an
// explicit check-in resets last_check_in and the escalation state. The
// insert arm seeds a fresh record for a first-ever signal so the sweep
// has a row to classify.
func (d *DB) TouchActivity(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
        INSERT INTO inactivity_records (
            user_id, last_sign_in_at, last_check_in, days_inactive, current_tier,
            last_notified_tier, escalation_level, updated_at
        )
        VALUES ($1, $2, $2, 0, 'none', 'none', 0, $2)
        ON CONFLICT (user_id) DO UPDATE
        SET last_sign_in_at = GREATEST(inactivity_records.last_sign_in_at, EXCLUDED.last_sign_in_at),
            updated_at = EXCLUDED.updated_at`
	if _, err := d.Pool.Exec(ctx, query, userID, at.UTC()); err != nil {
		return fmt.Errorf("failed to touch activity for user %s: %w", userID, err)
	}
	return nil
}

// UpdateClassification writes the sweep's computed days/tier. The tier
// guard keeps the stored tier from silently decreasing: only a check-in
// resets it.
func (d *DB) UpdateClassification(ctx context.Context, userID uuid.UUID, days int, tier models.Tier) error {
	query := `
        UPDATE inactivity_records
        SET days_inactive = $1, current_tier = $2, updated_at = $3
        WHERE user_id = $4`
	result, err := d.Pool.Exec(ctx, query, days, tier, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update classification for user %s: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("inactivity record for user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// MarkEscalated records that guardians were notified at the given tier.
func (d *DB) MarkEscalated(ctx context.Context, userID uuid.UUID, tier models.Tier, level int, at time.Time) error {
	query := `
        UPDATE inactivity_records
        SET last_notified_tier = $1, last_escalated_at = $2, escalation_level = $3, updated_at = $2
        WHERE user_id = $4`
	result, err := d.Pool.Exec(ctx, query, tier, at.UTC(), level, userID)
	if err != nil {
		return fmt.Errorf("failed to mark escalation for user %s: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("inactivity record for user %s: %w", userID, ErrNotFound)
	}
	return nil
}
