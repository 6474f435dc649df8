// Package capsule implements the capsule lifecycle state machine:
// draft -> scheduled -> sent|failed, with cancelled reachable from
// draft or scheduled, and failed re-entering scheduled only through an
// explicit reschedule.
package capsule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/delivery"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

var (
	// ErrInvalidTransition is returned for a lifecycle move the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid capsule state transition")
	// ErrNotOwner is returned when a caller operates on a capsule they
	// do not own.
	ErrNotOwner = errors.New("capsule does not belong to user")
	// ErrAlreadyClaimed is returned when a delivery run lost the claim
	// race; the capsule is being (or was) handled elsewhere.
	ErrAlreadyClaimed = errors.New("capsule already claimed for delivery")
)

// Store is the persistence surface the lifecycle needs.
type Store interface {
	CreateCapsule(ctx context.Context, c models.Capsule) error
	GetCapsule(ctx context.Context, id uuid.UUID) (models.Capsule, error)
	GetCapsulesByUserID(ctx context.Context, userID uuid.UUID) ([]models.Capsule, error)
	TransitionCapsule(ctx context.Context, id uuid.UUID, from, to string, scheduledFor *time.Time) (bool, error)
	ClaimForDelivery(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseDeliveryClaim(ctx context.Context, id uuid.UUID) error
	RearmDeadMansSwitchCapsules(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	GetActiveGuardians(ctx context.Context, userID uuid.UUID) ([]models.Guardian, error)
	CreateDeliveryAttempt(ctx context.Context, a models.DeliveryAttempt) error
	GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error)
	CheckIn(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// Router delivers a due capsule over its channel.
type Router interface {
	Deliver(ctx context.Context, c models.Capsule) delivery.Result
}

// OutcomeFeed pushes delivery outcomes to the capsule's owner so a
// failed capsule is never silently invisible.
type OutcomeFeed interface {
	NotifyUser(userID uuid.UUID, message string)
}

type Service struct {
	store  Store
	router Router
	feed   OutcomeFeed
	logger *logging.Logger
}

func NewService(store Store, router Router, feed OutcomeFeed, logger *logging.Logger) *Service {
	return &Service{store: store, router: router, feed: feed, logger: logger}
}

// Create validates and persists a draft capsule. No recipient is
// contacted. The returned estimate is the delivery date implied by the
// trigger configuration, for observability only.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req models.CapsuleCreate, now time.Time) (models.Capsule, *time.Time, error) {
	c := models.Capsule{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            req.Title,
		ContentType:      req.ContentType,
		Body:             req.Body,
		Attachments:      req.Attachments,
		DeliveryMethod:   req.DeliveryMethod,
		Recipient:        req.Recipient,
		BackupRecipients: req.BackupRecipients,
		PrivacyLevel:     req.PrivacyLevel,
		Jurisdiction:     req.Jurisdiction,
		Language:         req.Language,
		TriggerType:      req.TriggerType,
		TriggerDate:      req.TriggerDate,
		InactivityDays:   req.InactivityDays,
		EventKey:         req.EventKey,
		Status:           models.CapsuleDraft,
		CreatedAt:        now,
	}

	if err := Validate(c, now); err != nil {
		return models.Capsule{}, nil, err
	}
	if err := s.store.CreateCapsule(ctx, c); err != nil {
		return models.Capsule{}, nil, err
	}

	estimate := s.estimateDelivery(ctx, c, now)
	s.logger.Infof("Created capsule %s for user %s (trigger %s)", c.ID, userID, c.TriggerType)
	return c, estimate, nil
}

// Schedule moves a draft capsule to scheduled. Re-validates the full
// configuration and reports every violation at once.
func (s *Service) Schedule(ctx context.Context, userID, id uuid.UUID, now time.Time) (models.Capsule, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return models.Capsule{}, err
	}
	if c.Status != models.CapsuleDraft {
		return models.Capsule{}, fmt.Errorf("capsule %s is %s: %w", id, c.Status, ErrInvalidTransition)
	}
	if err := Validate(c, now); err != nil {
		return models.Capsule{}, err
	}

	// A capsule enters scheduled only with a future delivery estimate.
	scheduledFor := s.estimateDelivery(ctx, c, now)
	if scheduledFor != nil && !scheduledFor.After(now) {
		switch c.TriggerType {
		case models.TriggerDateBased:
			return models.Capsule{}, &ValidationError{Violations: []string{"trigger_date must be in the future when scheduling"}}
		case models.TriggerDeadMansSwitch:
			return models.Capsule{}, &ValidationError{Violations: []string{"inactivity window has already elapsed; check in before scheduling"}}
		}
	}

	ok, err := s.store.TransitionCapsule(ctx, id, models.CapsuleDraft, models.CapsuleScheduled, scheduledFor)
	if err != nil {
		return models.Capsule{}, err
	}
	if !ok {
		return models.Capsule{}, fmt.Errorf("capsule %s left draft concurrently: %w", id, ErrInvalidTransition)
	}

	c.Status = models.CapsuleScheduled
	c.ScheduledFor = scheduledFor
	s.logger.Infof("Scheduled capsule %s for %v", id, scheduledFor)
	return c, nil
}

// Cancel is legal from draft or scheduled only. Sent capsules are
// immutable; failed ones must be rescheduled, not dropped.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if c.Status != models.CapsuleDraft && c.Status != models.CapsuleScheduled {
		return fmt.Errorf("cannot cancel capsule %s in state %s: %w", id, c.Status, ErrInvalidTransition)
	}
	ok, err := s.store.TransitionCapsule(ctx, id, c.Status, models.CapsuleCancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("capsule %s changed state concurrently: %w", id, ErrInvalidTransition)
	}
	s.logger.Infof("Cancelled capsule %s", id)
	return nil
}

// Reschedule moves a failed capsule back to scheduled. This is an
// explicit operator/user action: failed capsules are never retried
// automatically, so stale legal or emergency notices cannot loop.
func (s *Service) Reschedule(ctx context.Context, userID, id uuid.UUID, now time.Time) (models.Capsule, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return models.Capsule{}, err
	}
	if c.Status != models.CapsuleFailed {
		return models.Capsule{}, fmt.Errorf("capsule %s is %s, only failed capsules can be rescheduled: %w", id, c.Status, ErrInvalidTransition)
	}
	if err := Validate(c, now); err != nil {
		return models.Capsule{}, err
	}

	if err := s.store.ReleaseDeliveryClaim(ctx, id); err != nil {
		return models.Capsule{}, err
	}
	scheduledFor := s.estimateDelivery(ctx, c, now)
	ok, err := s.store.TransitionCapsule(ctx, id, models.CapsuleFailed, models.CapsuleScheduled, scheduledFor)
	if err != nil {
		return models.Capsule{}, err
	}
	if !ok {
		return models.Capsule{}, fmt.Errorf("capsule %s changed state concurrently: %w", id, ErrInvalidTransition)
	}

	c.Status = models.CapsuleScheduled
	c.ScheduledFor = scheduledFor
	s.logger.Infof("Rescheduled failed capsule %s", id)
	return c, nil
}

// Deliver claims a scheduled capsule, invokes its channel adapter,
// records the attempt, and finalizes the state. The claim is the
// optimistic guard: concurrent runs can never both reach an adapter for
// the same capsule, so at most one successful attempt can ever exist.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) (delivery.Result, error) {
	c, err := s.store.GetCapsule(ctx, id)
	if err != nil {
		return delivery.Result{}, err
	}
	if c.Status != models.CapsuleScheduled {
		return delivery.Result{}, fmt.Errorf("capsule %s is %s, not scheduled: %w", id, c.Status, ErrInvalidTransition)
	}

	claimed, err := s.store.ClaimForDelivery(ctx, id)
	if err != nil {
		return delivery.Result{}, err
	}
	if !claimed {
		return delivery.Result{}, fmt.Errorf("capsule %s: %w", id, ErrAlreadyClaimed)
	}

	result := s.router.Deliver(ctx, c)

	// The attempt row is written before the capsule's own state so the
	// audit trail and the state can never diverge silently.
	if err := s.store.CreateDeliveryAttempt(ctx, result.Attempt(c.ID)); err != nil {
		s.logger.Errorf("Failed to record delivery attempt for capsule %s: %v", c.ID, err)
	}

	final := models.CapsuleFailed
	if result.Success {
		final = models.CapsuleSent
	}
	ok, err := s.store.TransitionCapsule(ctx, id, models.CapsuleScheduled, final, nil)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, fmt.Errorf("capsule %s changed state during delivery: %w", id, ErrInvalidTransition)
	}

	s.notifyOwner(c, result)
	return result, nil
}

// Activate fires a guardian_activated capsule through an explicit
// manual call, bypassing the trigger evaluator. Only the owner or one
// of the owner's active guardians may activate.
func (s *Service) Activate(ctx context.Context, callerID, id uuid.UUID) (delivery.Result, error) {
	c, err := s.store.GetCapsule(ctx, id)
	if err != nil {
		return delivery.Result{}, err
	}
	if c.TriggerType != models.TriggerGuardianActivated {
		return delivery.Result{}, fmt.Errorf("capsule %s has trigger %s, not guardian_activated: %w", id, c.TriggerType, ErrInvalidTransition)
	}
	if err := s.canActivate(ctx, callerID, c.UserID); err != nil {
		return delivery.Result{}, err
	}
	s.logger.Infof("Capsule %s manually activated by %s", id, callerID)
	return s.Deliver(ctx, id)
}

// canActivate permits the capsule's owner and the owner's active
// guardians; everyone else is rejected before any delivery side effect.
func (s *Service) canActivate(ctx context.Context, callerID, ownerID uuid.UUID) error {
	if callerID == ownerID {
		return nil
	}
	guardians, err := s.store.GetActiveGuardians(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, g := range guardians {
		if g.ID == callerID {
			return nil
		}
	}
	return fmt.Errorf("caller %s may not activate capsules of user %s: %w", callerID, ownerID, ErrNotOwner)
}

// CheckIn resets the user's inactivity clock and pushes every scheduled
// dead_mans_switch capsule forward by its full interval. Idempotent:
// repeated calls converge on the same state.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID, now time.Time) error {
	if err := s.store.CheckIn(ctx, userID, now); err != nil {
		return err
	}
	rearmed, err := s.store.RearmDeadMansSwitchCapsules(ctx, userID, now)
	if err != nil {
		return err
	}
	s.logger.Infof("Check-in for user %s, re-armed %d capsules", userID, rearmed)
	return nil
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (models.Capsule, error) {
	c, err := s.store.GetCapsule(ctx, id)
	if err != nil {
		return models.Capsule{}, err
	}
	if c.UserID != userID {
		return models.Capsule{}, fmt.Errorf("capsule %s: %w", id, ErrNotOwner)
	}
	return c, nil
}

// estimateDelivery computes when the capsule is expected to fire.
// date_based snapshots the trigger date; dead_mans_switch is a rolling
// window from the owner's last check-in, recomputed on every check-in;
// event_based and guardian_activated have no predictable date.
func (s *Service) estimateDelivery(ctx context.Context, c models.Capsule, now time.Time) *time.Time {
	switch c.TriggerType {
	case models.TriggerDateBased:
		return c.TriggerDate
	case models.TriggerDeadMansSwitch:
		base := now
		if rec, err := s.store.GetInactivityRecord(ctx, c.UserID); err == nil && !rec.LastCheckIn.IsZero() {
			base = rec.LastCheckIn
		}
		t := base.AddDate(0, 0, c.InactivityDays)
		return &t
	default:
		return nil
	}
}

func (s *Service) notifyOwner(c models.Capsule, result delivery.Result) {
	if s.feed == nil {
		return
	}
	if result.Success {
		s.feed.NotifyUser(c.UserID, fmt.Sprintf("Capsule %q delivered via %s", c.Title, result.Channel))
		return
	}
	s.feed.NotifyUser(c.UserID, fmt.Sprintf("Capsule %q failed to deliver via %s: %v", c.Title, result.Channel, result.Errors))
}
