package models

import (
	"time"

	"github.com/google/uuid"
)

// LifeEvent marks a named external event as occurred for a user.
// event_based capsule triggers fire once their key is present here.
type LifeEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	EventKey   string    `json:"event_key"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}
