package capsule

import (
	"fmt"
	"strings"

	"time"

	"github.com/go-playground/validator/v10"

	"capsule-service/internal/models"
)

// ValidationError aggregates every violated constraint. Callers get the
// whole list at once, not just the first failure, and the capsule stays
// in draft.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "capsule validation failed: " + strings.Join(e.Violations, "; ")
}

var validate = validator.New()

// Validate checks a capsule's content, recipient, and trigger
// configuration. Used at create time and again at schedule time.
func Validate(c models.Capsule, now time.Time) error {
	var violations []string

	if strings.TrimSpace(c.Body) == "" {
		violations = append(violations, "body must not be empty")
	}
	if len(c.Body) > models.MaxBodyLength {
		violations = append(violations, fmt.Sprintf("body exceeds maximum length of %d characters", models.MaxBodyLength))
	}
	if strings.TrimSpace(c.Title) == "" {
		violations = append(violations, "title must not be empty")
	}
	if strings.TrimSpace(c.Recipient.Name) == "" {
		violations = append(violations, "recipient name is required")
	}

	switch c.DeliveryMethod {
	case models.MethodEmail:
		if c.Recipient.Contact == "" {
			violations = append(violations, "recipient email is required for email delivery")
		} else if err := validate.Var(c.Recipient.Contact, "email"); err != nil {
			violations = append(violations, fmt.Sprintf("recipient email %q is not a valid address", c.Recipient.Contact))
		}
	case models.MethodLegalNotice:
		if c.Jurisdiction == "" {
			violations = append(violations, "jurisdiction is required for legal notice delivery")
		}
	case models.MethodGuardianNotification, models.MethodSocialMedia:
		// Recipient contact resolved at delivery time.
	default:
		violations = append(violations, fmt.Sprintf("unknown delivery method %q", c.DeliveryMethod))
	}

	switch c.TriggerType {
	case models.TriggerDateBased:
		if c.TriggerDate == nil {
			violations = append(violations, "trigger_date is required for date_based triggers")
		} else if c.Status == models.CapsuleDraft && !c.TriggerDate.After(now) {
			violations = append(violations, "trigger_date must be in the future")
		}
	case models.TriggerDeadMansSwitch:
		if c.InactivityDays <= 0 {
			violations = append(violations, "inactivity_days must be a positive number of days")
		}
	case models.TriggerEventBased:
		if strings.TrimSpace(c.EventKey) == "" {
			violations = append(violations, "event_key is required for event_based triggers")
		}
	case models.TriggerGuardianActivated:
		// No trigger configuration beyond the type itself.
	default:
		violations = append(violations, fmt.Sprintf("unknown trigger type %q", c.TriggerType))
	}

	for i, b := range c.BackupRecipients {
		if b.DelayDays < 0 {
			violations = append(violations, fmt.Sprintf("backup recipient %d has a negative delay", i+1))
		}
		if strings.TrimSpace(b.Name) == "" {
			violations = append(violations, fmt.Sprintf("backup recipient %d is missing a name", i+1))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
