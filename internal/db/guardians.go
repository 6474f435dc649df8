package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"capsule-service/internal/models"
)

const guardianColumns = `
	id, user_id, name, email, phone, telegram_chat_id, relationship,
	emergency_access, priority, status, created_at`

func (d *DB) CreateGuardian(ctx context.Context, g models.Guardian) error {
	query := `
        INSERT INTO guardians (
            id, user_id, name, email, phone, telegram_chat_id, relationship,
            emergency_access, priority, status, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := d.Pool.Exec(ctx, query,
		g.ID, g.UserID, g.Name, g.Email, g.Phone, g.TelegramChatID,
		g.Relationship, g.EmergencyAccess, g.Priority, g.Status, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create guardian: %w", err)
	}
	return nil
}

func scanGuardian(row rowScanner) (models.Guardian, error) {
	var g models.Guardian
	var id, userID pgtype.UUID
	err := row.Scan(
		&id, &userID, &g.Name, &g.Email, &g.Phone, &g.TelegramChatID,
		&g.Relationship, &g.EmergencyAccess, &g.Priority, &g.Status, &g.CreatedAt,
	)
	if err != nil {
		return models.Guardian{}, err
	}
	g.ID = uuid.UUID(id.Bytes)
	g.UserID = uuid.UUID(userID.Bytes)
	return g, nil
}

func (d *DB) GetGuardian(ctx context.Context, id uuid.UUID) (models.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE id = $1`
	g, err := scanGuardian(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Guardian{}, fmt.Errorf("guardian %s: %w", id, ErrNotFound)
		}
		return models.Guardian{}, fmt.Errorf("failed to get guardian %s: %w", id, err)
	}
	return g, nil
}

// GetActiveGuardians returns a user's active guardians, highest
// priority first.
func (d *DB) GetActiveGuardians(ctx context.Context, userID uuid.UUID) ([]models.Guardian, error) {
	query := `SELECT ` + guardianColumns + `
        FROM guardians
        WHERE user_id = $1 AND status = 'active'
        ORDER BY priority DESC, created_at`
	rows, err := d.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guardians for user %s: %w", userID, err)
	}
	defer rows.Close()

	var guardians []models.Guardian
	for rows.Next() {
		g, err := scanGuardian(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guardian: %w", err)
		}
		guardians = append(guardians, g)
	}
	return guardians, rows.Err()
}

// DeactivateGuardian soft-deletes a guardian, scoped to its owner.
func (d *DB) DeactivateGuardian(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE guardians SET status = 'inactive' WHERE id = $1 AND user_id = $2`
	result, err := d.Pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate guardian %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("guardian %s: %w", id, ErrNotFound)
	}
	return nil
}
