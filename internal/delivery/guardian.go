package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

// GuardianStore is the lookup the broadcast adapter needs.
type GuardianStore interface {
	GetActiveGuardians(ctx context.Context, userID uuid.UUID) ([]models.Guardian, error)
}

// GuardianAdapter broadcasts a capsule to every active guardian of its
// owner. With no guardians configured there is nothing to partially
// send, so that case fails immediately with a lookup error; otherwise
// the broadcast succeeds if at least one guardian was reached.
type GuardianAdapter struct {
	store    GuardianStore
	notifier *GuardianNotifier
	logger   *logging.Logger
}

func NewGuardianAdapter(store GuardianStore, notifier *GuardianNotifier, logger *logging.Logger) *GuardianAdapter {
	return &GuardianAdapter{store: store, notifier: notifier, logger: logger}
}

func (a *GuardianAdapter) Deliver(ctx context.Context, c models.Capsule) Result {
	guardians, err := a.store.GetActiveGuardians(ctx, c.UserID)
	if err != nil {
		return failure(models.MethodGuardianNotification, fmt.Sprintf("guardian lookup failed: %v", err))
	}
	if len(guardians) == 0 {
		return failure(models.MethodGuardianNotification,
			fmt.Sprintf("user %s has no active guardians configured", c.UserID))
	}

	subject := fmt.Sprintf("Time capsule released: %s", c.Title)
	body := formatCapsuleBody(c)

	var (
		mu      sync.Mutex
		reached []uuid.UUID
		errs    []string
		wg      sync.WaitGroup
	)
	for _, g := range guardians {
		wg.Add(1)
		go func(g models.Guardian) {
			defer wg.Done()
			if err := a.notifier.Notify(ctx, g, subject, body); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("guardian %s: %v", g.ID, err))
				mu.Unlock()
				return
			}
			mu.Lock()
			reached = append(reached, g.ID)
			mu.Unlock()
		}(g)
	}
	wg.Wait()

	if len(reached) == 0 {
		return failure(models.MethodGuardianNotification, errs...)
	}
	if len(errs) > 0 {
		a.logger.Warnf("Capsule %s reached %d/%d guardians", c.ID, len(reached), len(guardians))
	}

	return Result{
		Success:     true,
		Channel:     models.MethodGuardianNotification,
		DeliveredAt: time.Now().UTC(),
		TrackingID:  uuid.New().String(),
		Errors:      errs,
	}
}
