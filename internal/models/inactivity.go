package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier is an inactivity severity tier.
type Tier string

const (
	TierNone      Tier = "none"
	TierWarning   Tier = "warning"
	TierCritical  Tier = "critical"
	TierEmergency Tier = "emergency"
)

// Severity orders tiers for comparison; higher is more severe.
func (t Tier) Severity() int {
	switch t {
	case TierWarning:
		return 1
	case TierCritical:
		return 2
	case TierEmergency:
		return 3
	default:
		return 0
	}
}

// InactivityRecord tracks one user's activity and escalation state.
// CheckIn resets it; the scheduler sweep only ever advances it.
type InactivityRecord struct {
	UserID           uuid.UUID  `json:"user_id"`
	LastSignInAt     time.Time  `json:"last_sign_in_at"`
	LastCheckIn      time.Time  `json:"last_check_in"`
	DaysInactive     int        `json:"days_inactive"`
	CurrentTier      Tier       `json:"current_tier"`
	LastNotifiedTier Tier       `json:"last_notified_tier"`
	LastEscalatedAt  *time.Time `json:"last_escalated_at,omitempty"`
	EscalationLevel  int        `json:"escalation_level"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
