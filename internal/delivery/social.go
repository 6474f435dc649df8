package delivery

import (
	"context"

	"capsule-service/internal/models"
)

// SocialAdapter is a placeholder: social media posting is not
// implemented. It exists so the state machine and audit trail behave
// the same for unsupported channels as for real ones.
type SocialAdapter struct{}

func NewSocialAdapter() *SocialAdapter {
	return &SocialAdapter{}
}

func (a *SocialAdapter) Deliver(ctx context.Context, c models.Capsule) Result {
	return failure(models.MethodSocialMedia, "social media delivery is not implemented")
}
