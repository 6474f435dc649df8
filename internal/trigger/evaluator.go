// Package trigger decides whether a capsule's trigger has fired. All
// functions are pure: state comes in as parameters and nothing is
// mutated, so the same inputs always produce the same result.
package trigger

import (
	"time"

	"capsule-service/internal/models"
)

// Result of evaluating a trigger.
type Result int

const (
	NotYet Result = iota
	Fired
	Invalid
)

func (r Result) String() string {
	switch r {
	case Fired:
		return "fired"
	case Invalid:
		return "invalid"
	default:
		return "not_yet"
	}
}

// Evaluate reports whether the capsule's trigger has fired at now.
// lastCheckIn is the owner's most recent check-in (dead_mans_switch
// only); occurred is the set of recorded event keys (event_based only).
//
// "Due" means now >= deadline, not now == deadline: a capsule whose
// date passed while the system was down still fires on the next
// evaluation.
func Evaluate(c models.Capsule, lastCheckIn time.Time, occurred map[string]bool, now time.Time) Result {
	switch c.TriggerType {
	case models.TriggerDateBased:
		if c.TriggerDate == nil {
			return Invalid
		}
		if !now.Before(*c.TriggerDate) {
			return Fired
		}
		return NotYet

	case models.TriggerDeadMansSwitch:
		if c.InactivityDays <= 0 || lastCheckIn.IsZero() {
			return Invalid
		}
		deadline := lastCheckIn.AddDate(0, 0, c.InactivityDays)
		if !now.Before(deadline) {
			return Fired
		}
		return NotYet

	case models.TriggerEventBased:
		if c.EventKey == "" {
			return Invalid
		}
		if occurred[c.EventKey] {
			return Fired
		}
		return NotYet

	case models.TriggerGuardianActivated:
		// Fires only through an explicit activation call, never by
		// polling.
		return NotYet

	default:
		return Invalid
	}
}
