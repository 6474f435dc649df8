package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"capsule-service/internal/models"
)

// CreateDeliveryAttempt appends one attempt row. Retries add rows; the
// history is never overwritten.
func (d *DB) CreateDeliveryAttempt(ctx context.Context, a models.DeliveryAttempt) error {
	errs, err := json.Marshal(a.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode attempt errors: %w", err)
	}

	query := `
        INSERT INTO delivery_attempts (
            id, capsule_id, channel, success, errors, tracking_id,
            recipient_confirmed, legal_notice_generated, artifact_ref, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = d.Pool.Exec(ctx, query,
		a.ID, a.CapsuleID, a.Channel, a.Success, errs, a.TrackingID,
		a.RecipientConfirmed, a.LegalNoticeGenerated, a.ArtifactRef, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create delivery attempt: %w", err)
	}
	return nil
}

func (d *DB) GetAttemptsByCapsuleID(ctx context.Context, capsuleID uuid.UUID) ([]models.DeliveryAttempt, error) {
	query := `
        SELECT id, capsule_id, channel, success, errors, tracking_id,
               recipient_confirmed, legal_notice_generated, artifact_ref, created_at
        FROM delivery_attempts
        WHERE capsule_id = $1
        ORDER BY created_at DESC`
	rows, err := d.Pool.Query(ctx, query, capsuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts for capsule %s: %w", capsuleID, err)
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var id, capID pgtype.UUID
		var errList []byte
		err := rows.Scan(&id, &capID, &a.Channel, &a.Success, &errList, &a.TrackingID,
			&a.RecipientConfirmed, &a.LegalNoticeGenerated, &a.ArtifactRef, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery attempt: %w", err)
		}
		a.ID = uuid.UUID(id.Bytes)
		a.CapsuleID = uuid.UUID(capID.Bytes)
		if len(errList) > 0 {
			if err := json.Unmarshal(errList, &a.Errors); err != nil {
				return nil, fmt.Errorf("failed to decode attempt errors: %w", err)
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// SaveLegalArtifact persists a rendered legal notice. The artifact only
// exists after a successful render, keyed by content hash.
func (d *DB) SaveLegalArtifact(ctx context.Context, capsuleID uuid.UUID, sha256Hex string, data []byte) error {
	query := `
        INSERT INTO legal_artifacts (capsule_id, sha256, content, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (capsule_id, sha256) DO NOTHING`
	if _, err := d.Pool.Exec(ctx, query, capsuleID, sha256Hex, data); err != nil {
		return fmt.Errorf("failed to save legal artifact for capsule %s: %w", capsuleID, err)
	}
	return nil
}
