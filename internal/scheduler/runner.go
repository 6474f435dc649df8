// Package scheduler runs one sweep over all users and scheduled
// capsules. It is driven by an external periodic trigger through the
// cron endpoint; nothing here self-fires on a timer, and the trigger
// source is responsible for not overlapping invocations.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/delivery"
	"capsule-service/internal/escalation"
	"capsule-service/internal/inactivity"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
	"capsule-service/internal/trigger"
)

// Store is the read/write surface one sweep needs.
type Store interface {
	ListInactivityRecords(ctx context.Context) ([]models.InactivityRecord, error)
	GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error)
	UpdateClassification(ctx context.Context, userID uuid.UUID, days int, tier models.Tier) error
	GetScheduledCapsules(ctx context.Context) ([]models.Capsule, error)
	GetOccurredEventKeys(ctx context.Context, userID uuid.UUID) (map[string]bool, error)
}

// Escalator processes one classified user.
type Escalator interface {
	Process(ctx context.Context, rec models.InactivityRecord, tier models.Tier, now time.Time) (*models.EscalationEvent, error)
}

// Deliverer fires one due capsule.
type Deliverer interface {
	Deliver(ctx context.Context, id uuid.UUID) (delivery.Result, error)
}

// Summary is returned to the cron caller after a sweep.
type Summary struct {
	UsersChecked      int                 `json:"users_checked"`
	TierCounts        map[models.Tier]int `json:"tier_counts"`
	NotificationsSent int                 `json:"notifications_sent"`
	Escalations       int                 `json:"escalations"`
	UsersNoGuardians  int                 `json:"users_without_guardians"`
	CapsulesEvaluated int                 `json:"capsules_evaluated"`
	CapsulesDelivered int                 `json:"capsules_delivered"`
	CapsulesFailed    int                 `json:"capsules_failed"`
}

// Deps is the explicitly constructed wiring for a Runner. Built once at
// startup and passed in; there is no global registry.
type Deps struct {
	Store      Store
	Escalator  Escalator
	Deliverer  Deliverer
	Thresholds inactivity.Thresholds
	MaxWorkers int
	Logger     *logging.Logger
}

type Runner struct {
	deps Deps
}

func NewRunner(deps Deps) *Runner {
	if deps.MaxWorkers <= 0 {
		deps.MaxWorkers = 1
	}
	return &Runner{deps: deps}
}

// Run executes one full sweep: classify and escalate every user, then
// evaluate and deliver every due capsule.
func (r *Runner) Run(ctx context.Context, now time.Time) (Summary, error) {
	summary := Summary{TierCounts: make(map[models.Tier]int)}
	var mu sync.Mutex

	if err := r.sweepUsers(ctx, now, &summary, &mu); err != nil {
		return summary, err
	}
	if err := r.sweepCapsules(ctx, now, &summary, &mu); err != nil {
		return summary, err
	}

	r.deps.Logger.Infof(
		"Sweep complete: %d users, %d escalations, %d/%d capsules delivered",
		summary.UsersChecked, summary.Escalations, summary.CapsulesDelivered, summary.CapsulesEvaluated,
	)
	return summary, nil
}

func (r *Runner) sweepUsers(ctx context.Context, now time.Time, summary *Summary, mu *sync.Mutex) error {
	records, err := r.deps.Store.ListInactivityRecords(ctx)
	if err != nil {
		return err
	}

	jobs := make(chan models.InactivityRecord)
	var wg sync.WaitGroup
	for i := 0; i < r.deps.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				r.processUser(ctx, rec, now, summary, mu)
			}
		}()
	}
	for _, rec := range records {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()
	return nil
}

func (r *Runner) processUser(ctx context.Context, rec models.InactivityRecord, now time.Time, summary *Summary, mu *sync.Mutex) {
	days := inactivity.DaysInactive(rec.LastCheckIn, now)
	tier := inactivity.Classify(days, r.deps.Thresholds)

	// A stored tier only decreases through an explicit check-in, never
	// through the sweep.
	if tier.Severity() < rec.CurrentTier.Severity() {
		tier = rec.CurrentTier
	}

	if err := r.deps.Store.UpdateClassification(ctx, rec.UserID, days, tier); err != nil {
		r.deps.Logger.Errorf("Failed to persist classification for user %s: %v", rec.UserID, err)
	}
	rec.DaysInactive = days
	rec.CurrentTier = tier

	event, err := r.deps.Escalator.Process(ctx, rec, tier, now)

	mu.Lock()
	defer mu.Unlock()
	summary.UsersChecked++
	summary.TierCounts[tier]++
	if err != nil {
		if errors.Is(err, escalation.ErrNoGuardians) {
			summary.UsersNoGuardians++
			r.deps.Logger.Warnf("User %s needs escalation but has no guardians: %v", rec.UserID, err)
		} else {
			r.deps.Logger.Errorf("Escalation failed for user %s: %v", rec.UserID, err)
		}
		return
	}
	if event != nil {
		summary.Escalations++
		summary.NotificationsSent += len(event.GuardiansNotified)
	}
}

func (r *Runner) sweepCapsules(ctx context.Context, now time.Time, summary *Summary, mu *sync.Mutex) error {
	capsules, err := r.deps.Store.GetScheduledCapsules(ctx)
	if err != nil {
		return err
	}

	jobs := make(chan models.Capsule)
	var wg sync.WaitGroup
	for i := 0; i < r.deps.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				r.processCapsule(ctx, c, now, summary, mu)
			}
		}()
	}
	for _, c := range capsules {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return nil
}

func (r *Runner) processCapsule(ctx context.Context, c models.Capsule, now time.Time, summary *Summary, mu *sync.Mutex) {
	var lastCheckIn time.Time
	if c.TriggerType == models.TriggerDeadMansSwitch {
		rec, err := r.deps.Store.GetInactivityRecord(ctx, c.UserID)
		if err != nil {
			r.deps.Logger.Errorf("No inactivity record for capsule %s owner %s: %v", c.ID, c.UserID, err)
			mu.Lock()
			summary.CapsulesEvaluated++
			mu.Unlock()
			return
		}
		lastCheckIn = rec.LastCheckIn
	}

	var occurred map[string]bool
	if c.TriggerType == models.TriggerEventBased {
		var err error
		occurred, err = r.deps.Store.GetOccurredEventKeys(ctx, c.UserID)
		if err != nil {
			r.deps.Logger.Errorf("Failed to load events for capsule %s: %v", c.ID, err)
			mu.Lock()
			summary.CapsulesEvaluated++
			mu.Unlock()
			return
		}
	}

	result := trigger.Evaluate(c, lastCheckIn, occurred, now)

	mu.Lock()
	summary.CapsulesEvaluated++
	mu.Unlock()

	switch result {
	case trigger.Invalid:
		r.deps.Logger.Errorf("Capsule %s has an invalid %s trigger configuration", c.ID, c.TriggerType)
	case trigger.Fired:
		res, err := r.deps.Deliverer.Deliver(ctx, c.ID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			r.deps.Logger.Errorf("Delivery of capsule %s failed: %v", c.ID, err)
			summary.CapsulesFailed++
			return
		}
		if res.Success {
			summary.CapsulesDelivered++
		} else {
			summary.CapsulesFailed++
		}
	}
}
