package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"capsule-service/internal/models"
)

func TestEvaluateDateBased(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		date *time.Time
		want Result
	}{
		{"date in the past fires", &past, Fired},
		{"date exactly now fires", &now, Fired},
		{"date in the future waits", &future, NotYet},
		{"missing date is invalid", nil, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Capsule{TriggerType: models.TriggerDateBased, TriggerDate: tt.date}
			assert.Equal(t, tt.want, Evaluate(c, time.Time{}, nil, now))
		})
	}
}

func TestEvaluateDeadMansSwitch(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		days        int
		lastCheckIn time.Time
		want        Result
	}{
		{"within window", 30, now.AddDate(0, 0, -29), NotYet},
		{"deadline reached", 30, now.AddDate(0, 0, -30), Fired},
		{"deadline overdue", 30, now.AddDate(0, 0, -45), Fired},
		{"zero interval is invalid", 0, now.AddDate(0, 0, -10), Invalid},
		{"negative interval is invalid", -5, now.AddDate(0, 0, -10), Invalid},
		{"no check-in ever recorded is invalid", 30, time.Time{}, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Capsule{TriggerType: models.TriggerDeadMansSwitch, InactivityDays: tt.days}
			assert.Equal(t, tt.want, Evaluate(c, tt.lastCheckIn, nil, now))
		})
	}
}

func TestEvaluateEventBased(t *testing.T) {
	now := time.Now().UTC()
	occurred := map[string]bool{"graduation": true}

	tests := []struct {
		name     string
		eventKey string
		want     Result
	}{
		{"recorded event fires", "graduation", Fired},
		{"unrecorded event waits", "wedding", NotYet},
		{"missing key is invalid", "", Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Capsule{TriggerType: models.TriggerEventBased, EventKey: tt.eventKey}
			assert.Equal(t, tt.want, Evaluate(c, time.Time{}, occurred, now))
		})
	}
}

func TestEvaluateGuardianActivatedNeverFiresByPolling(t *testing.T) {
	now := time.Now().UTC()
	c := models.Capsule{TriggerType: models.TriggerGuardianActivated}
	assert.Equal(t, NotYet, Evaluate(c, time.Time{}, nil, now))
	assert.Equal(t, NotYet, Evaluate(c, time.Time{}, nil, now.AddDate(10, 0, 0)))
}

func TestEvaluateUnknownTriggerType(t *testing.T) {
	c := models.Capsule{TriggerType: "astrological"}
	assert.Equal(t, Invalid, Evaluate(c, time.Time{}, nil, time.Now().UTC()))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	date := now.Add(-time.Hour)
	c := models.Capsule{TriggerType: models.TriggerDateBased, TriggerDate: &date}
	first := Evaluate(c, time.Time{}, nil, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(c, time.Time{}, nil, now))
	}
}
