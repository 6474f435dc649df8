package inactivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"capsule-service/internal/models"
)

var defaultThresholds = Thresholds{WarningDays: 30, CriticalDays: 60, EmergencyDays: 90}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		days int
		want models.Tier
	}{
		{"fresh check-in", 0, models.TierNone},
		{"just under warning", 29, models.TierNone},
		{"warning boundary", 30, models.TierWarning},
		{"between warning and critical", 45, models.TierWarning},
		{"critical boundary", 60, models.TierCritical},
		{"emergency boundary", 90, models.TierEmergency},
		{"far past emergency", 365, models.TierEmergency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.days, defaultThresholds))
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	prev := Classify(0, defaultThresholds)
	for days := 1; days <= 120; days++ {
		cur := Classify(days, defaultThresholds)
		assert.GreaterOrEqual(t, cur.Severity(), prev.Severity(), "tier regressed at day %d", days)
		prev = cur
	}
}

func TestDaysInactive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastCheckIn time.Time
		want        int
	}{
		{"same instant", now, 0},
		{"under one day", now.Add(-23 * time.Hour), 0},
		{"exactly 31 days", now.AddDate(0, 0, -31), 31},
		{"future check-in clamps to zero", now.Add(time.Hour), 0},
		{"zero time clamps to zero", time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysInactive(tt.lastCheckIn, now))
		})
	}
}
