package delivery

import (
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/models"
)

// Result is the normalized outcome of one channel adapter call.
type Result struct {
	Success              bool      `json:"success"`
	Channel              string    `json:"channel"`
	DeliveredAt          time.Time `json:"delivered_at"`
	RecipientConfirmed   bool      `json:"recipient_confirmed"`
	LegalNoticeGenerated bool      `json:"legal_notice_generated"`
	Errors               []string  `json:"errors,omitempty"`
	TrackingID           string    `json:"tracking_id,omitempty"`
	ArtifactRef          string    `json:"artifact_ref,omitempty"`
}

func failure(channel string, errs ...string) Result {
	return Result{
		Success:     false,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
		Errors:      errs,
	}
}

// Attempt converts a Result into the audit row persisted for it.
func (r Result) Attempt(capsuleID uuid.UUID) models.DeliveryAttempt {
	return models.DeliveryAttempt{
		ID:                   uuid.New(),
		CapsuleID:            capsuleID,
		Channel:              r.Channel,
		Success:              r.Success,
		Errors:               r.Errors,
		TrackingID:           r.TrackingID,
		RecipientConfirmed:   r.RecipientConfirmed,
		LegalNoticeGenerated: r.LegalNoticeGenerated,
		ArtifactRef:          r.ArtifactRef,
		CreatedAt:            r.DeliveredAt,
	}
}
