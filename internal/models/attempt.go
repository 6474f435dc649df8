package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt records one delivery try for a capsule. Append-only:
// retries add rows, they never overwrite. At most one row per capsule
// carries Success=true.
type DeliveryAttempt struct {
	ID                   uuid.UUID `json:"id"`
	CapsuleID            uuid.UUID `json:"capsule_id"`
	Channel              string    `json:"channel"`
	Success              bool      `json:"success"`
	Errors               []string  `json:"errors,omitempty"`
	TrackingID           string    `json:"tracking_id,omitempty"`
	RecipientConfirmed   bool      `json:"recipient_confirmed"`
	LegalNoticeGenerated bool      `json:"legal_notice_generated"`
	ArtifactRef          string    `json:"artifact_ref,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}
