// Package escalation notifies guardians when a user's inactivity tier
// advances, and handles the manual emergency protocol.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

// ErrNoGuardians is returned when escalation is due but the user has no
// guardian able to receive emergency notices. Distinct from the
// already-notified no-op: no retry of the same shape will help without
// user action.
var ErrNoGuardians = errors.New("no guardians with emergency access configured")

// Store is the slice of persistence the coordinator needs.
type Store interface {
	GetActiveGuardians(ctx context.Context, userID uuid.UUID) ([]models.Guardian, error)
	GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error)
	CreateEscalationEvent(ctx context.Context, e models.EscalationEvent) error
	MarkEscalated(ctx context.Context, userID uuid.UUID, tier models.Tier, level int, at time.Time) error
}

// Notifier delivers one message to one guardian over whatever channel
// the guardian has configured.
type Notifier interface {
	Notify(ctx context.Context, g models.Guardian, subject, body string) error
}

type Coordinator struct {
	store    Store
	notifier Notifier
	cooldown time.Duration
	logger   *logging.Logger
}

func New(store Store, notifier Notifier, cooldown time.Duration, logger *logging.Logger) *Coordinator {
	return &Coordinator{store: store, notifier: notifier, cooldown: cooldown, logger: logger}
}

// Process escalates one user if their tier advanced past the last
// notified tier, or the re-notify cool-down elapsed at the same tier.
// Returns (nil, nil) for a no-op; re-running with unchanged state never
// re-notifies.
func (c *Coordinator) Process(ctx context.Context, rec models.InactivityRecord, tier models.Tier, now time.Time) (*models.EscalationEvent, error) {
	if tier == models.TierNone {
		return nil, nil
	}

	advanced := tier.Severity() > rec.LastNotifiedTier.Severity()
	cooledDown := tier == rec.LastNotifiedTier &&
		(rec.LastEscalatedAt == nil || now.Sub(*rec.LastEscalatedAt) >= c.cooldown)
	if !advanced && !cooledDown {
		return nil, nil
	}

	guardians, err := c.store.GetActiveGuardians(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guardians for user %s: %w", rec.UserID, err)
	}
	guardians = emergencyCapable(guardians)
	if len(guardians) == 0 {
		return nil, fmt.Errorf("user %s at tier %s: %w", rec.UserID, tier, ErrNoGuardians)
	}

	subject := fmt.Sprintf("Inactivity alert: %s", tier)
	body := fmt.Sprintf(
		"%s has been inactive for %d days and reached the %s tier.\nLast check-in: %s",
		rec.UserID, rec.DaysInactive, tier, rec.LastCheckIn.Format(time.RFC1123),
	)

	notified := c.fanOut(ctx, guardians, subject, body)
	if len(notified) == 0 {
		return nil, fmt.Errorf("failed to notify any of %d guardians for user %s", len(guardians), rec.UserID)
	}
	if len(notified) < len(guardians) {
		c.logger.Warnf("Partial escalation for user %s: %d/%d guardians notified", rec.UserID, len(notified), len(guardians))
	}

	event := models.EscalationEvent{
		ID:                uuid.New(),
		UserID:            rec.UserID,
		Tier:              tier,
		Level:             rec.EscalationLevel + 1,
		GuardiansNotified: notified,
		Source:            models.EscalationAutomatic,
		CreatedAt:         now,
	}
	if err := c.store.CreateEscalationEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record escalation event: %w", err)
	}
	if err := c.store.MarkEscalated(ctx, rec.UserID, tier, event.Level, now); err != nil {
		return nil, fmt.Errorf("failed to update escalation state: %w", err)
	}

	c.logger.Infof("Escalated user %s to %s (level %d, %d guardians)", rec.UserID, tier, event.Level, len(notified))
	return &event, nil
}

// TriggerEmergencyProtocol bypasses tier comparison and notifies every
// emergency-capable guardian unconditionally.
func (c *Coordinator) TriggerEmergencyProtocol(ctx context.Context, userID uuid.UUID, activatedBy string) (*models.EscalationEvent, error) {
	guardians, err := c.store.GetActiveGuardians(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guardians for user %s: %w", userID, err)
	}
	guardians = emergencyCapable(guardians)
	if len(guardians) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoGuardians)
	}

	subject := "Emergency protocol activated"
	body := fmt.Sprintf("The emergency protocol for %s was manually activated by %s.", userID, activatedBy)

	notified := c.fanOut(ctx, guardians, subject, body)
	if len(notified) == 0 {
		return nil, fmt.Errorf("failed to notify any of %d guardians for user %s", len(guardians), userID)
	}

	level := 1
	now := time.Now().UTC()
	if rec, err := c.store.GetInactivityRecord(ctx, userID); err == nil {
		level = rec.EscalationLevel + 1
	}

	event := models.EscalationEvent{
		ID:                uuid.New(),
		UserID:            userID,
		Tier:              models.TierEmergency,
		Level:             level,
		GuardiansNotified: notified,
		Source:            models.EscalationManual,
		ActivatedBy:       activatedBy,
		CreatedAt:         now,
	}
	if err := c.store.CreateEscalationEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record escalation event: %w", err)
	}
	if err := c.store.MarkEscalated(ctx, userID, models.TierEmergency, level, now); err != nil {
		c.logger.Errorf("Failed to update escalation state for user %s: %v", userID, err)
	}

	c.logger.Infof("Manual emergency protocol for user %s by %s (%d guardians)", userID, activatedBy, len(notified))
	return &event, nil
}

// fanOut notifies guardians concurrently. One failure never blocks the
// rest; the returned set holds only the guardians actually reached.
// The set is written under a single lock so the one audit row that
// follows is built by one writer.
func (c *Coordinator) fanOut(ctx context.Context, guardians []models.Guardian, subject, body string) []uuid.UUID {
	var (
		mu       sync.Mutex
		notified []uuid.UUID
		wg       sync.WaitGroup
	)
	for _, g := range guardians {
		wg.Add(1)
		go func(g models.Guardian) {
			defer wg.Done()
			if err := c.notifier.Notify(ctx, g, subject, body); err != nil {
				c.logger.Errorf("Failed to notify guardian %s: %v", g.ID, err)
				return
			}
			mu.Lock()
			notified = append(notified, g.ID)
			mu.Unlock()
		}(g)
	}
	wg.Wait()
	return notified
}

func emergencyCapable(guardians []models.Guardian) []models.Guardian {
	out := guardians[:0:0]
	for _, g := range guardians {
		if g.EmergencyAccess {
			out = append(out, g)
		}
	}
	return out
}
