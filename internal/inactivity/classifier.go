// Package inactivity maps days since last check-in to a severity tier.
package inactivity

import (
	"time"

	"capsule-service/internal/models"
)

// Thresholds are the ascending day boundaries for each tier. Values
// come from configuration, not policy baked into code.
type Thresholds struct {
	WarningDays   int
	CriticalDays  int
	EmergencyDays int
}

// DaysInactive returns whole days elapsed between lastCheckIn and now,
// never negative.
func DaysInactive(lastCheckIn, now time.Time) int {
	if lastCheckIn.IsZero() || now.Before(lastCheckIn) {
		return 0
	}
	return int(now.Sub(lastCheckIn).Hours() / 24)
}

// Classify maps daysInactive to a tier. Monotonic: more days never
// yields a less severe tier. The reset to none on check-in is the
// check-in operation's job, not the classifier's.
func Classify(daysInactive int, t Thresholds) models.Tier {
	switch {
	case daysInactive >= t.EmergencyDays:
		return models.TierEmergency
	case daysInactive >= t.CriticalDays:
		return models.TierCritical
	case daysInactive >= t.WarningDays:
		return models.TierWarning
	default:
		return models.TierNone
	}
}
