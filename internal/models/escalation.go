package models

import (
	"time"

	"github.com/google/uuid"
)

// Escalation sources.
const (
	EscalationAutomatic = "automatic"
	EscalationManual    = "manual"
)

// EscalationEvent is the append-only audit record of one escalation
// action. GuardiansNotified holds only the guardians actually reached;
// never mutated after insert.
type EscalationEvent struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	Tier              Tier        `json:"tier"`
	Level             int         `json:"level"`
	GuardiansNotified []uuid.UUID `json:"guardians_notified"`
	Source            string      `json:"source"`
	ActivatedBy       string      `json:"activated_by,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}
