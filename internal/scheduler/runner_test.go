package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsule-service/internal/delivery"
	"capsule-service/internal/escalation"
	"capsule-service/internal/inactivity"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

type sweepStore struct {
	mu       sync.Mutex
	records  []models.InactivityRecord
	capsules []models.Capsule
	events   map[uuid.UUID]map[string]bool

	classified map[uuid.UUID]models.Tier
}

func (s *sweepStore) ListInactivityRecords(ctx context.Context) ([]models.InactivityRecord, error) {
	return s.records, nil
}

func (s *sweepStore) GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error) {
	for _, rec := range s.records {
		if rec.UserID == userID {
			return rec, nil
		}
	}
	return models.InactivityRecord{}, fmt.Errorf("no record for user %s", userID)
}

func (s *sweepStore) UpdateClassification(ctx context.Context, userID uuid.UUID, days int, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.classified == nil {
		s.classified = make(map[uuid.UUID]models.Tier)
	}
	s.classified[userID] = tier
	return nil
}

func (s *sweepStore) GetScheduledCapsules(ctx context.Context) ([]models.Capsule, error) {
	return s.capsules, nil
}

func (s *sweepStore) GetOccurredEventKeys(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	return s.events[userID], nil
}

type fakeEscalator struct {
	mu     sync.Mutex
	calls  int
	event  *models.EscalationEvent
	err    error
	onTier map[models.Tier]bool
}

func (f *fakeEscalator) Process(ctx context.Context, rec models.InactivityRecord, tier models.Tier, now time.Time) (*models.EscalationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.onTier != nil && !f.onTier[tier] {
		return nil, nil
	}
	return f.event, nil
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []uuid.UUID
	result    delivery.Result
}

func (f *fakeDeliverer) Deliver(ctx context.Context, id uuid.UUID) (delivery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, id)
	return f.result, nil
}

func testLogger() *logging.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logging.Logger{Logger: l}
}

func testDeps(store *sweepStore, esc *fakeEscalator, del *fakeDeliverer) Deps {
	return Deps{
		Store:      store,
		Escalator:  esc,
		Deliverer:  del,
		Thresholds: inactivity.Thresholds{WarningDays: 30, CriticalDays: 60, EmergencyDays: 90},
		MaxWorkers: 4,
		Logger:     testLogger(),
	}
}

func TestRunClassifiesAndEscalates(t *testing.T) {
	now := time.Now().UTC()
	active := models.InactivityRecord{UserID: uuid.New(), LastCheckIn: now.Add(-2 * time.Hour)}
	inactive := models.InactivityRecord{UserID: uuid.New(), LastCheckIn: now.AddDate(0, 0, -31)}
	store := &sweepStore{records: []models.InactivityRecord{active, inactive}}

	esc := &fakeEscalator{
		event: &models.EscalationEvent{
			GuardiansNotified: []uuid.UUID{uuid.New(), uuid.New()},
		},
		onTier: map[models.Tier]bool{models.TierWarning: true},
	}
	runner := NewRunner(testDeps(store, esc, &fakeDeliverer{}))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.UsersChecked)
	assert.Equal(t, 1, summary.TierCounts[models.TierNone])
	assert.Equal(t, 1, summary.TierCounts[models.TierWarning])
	assert.Equal(t, 1, summary.Escalations)
	assert.Equal(t, 2, summary.NotificationsSent)
	assert.Equal(t, models.TierWarning, store.classified[inactive.UserID])
}

func TestRunTierNeverDecreasesWithoutCheckIn(t *testing.T) {
	now := time.Now().UTC()
	rec := models.InactivityRecord{
		UserID:      uuid.New(),
		LastCheckIn: now.Add(-time.Hour),
		CurrentTier: models.TierCritical,
	}
	store := &sweepStore{records: []models.InactivityRecord{rec}}
	runner := NewRunner(testDeps(store, &fakeEscalator{}, &fakeDeliverer{}))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, models.TierCritical, store.classified[rec.UserID],
		"only a check-in may lower a stored tier")
	assert.Equal(t, 1, summary.TierCounts[models.TierCritical])
}

func TestRunCountsUsersWithoutGuardians(t *testing.T) {
	now := time.Now().UTC()
	rec := models.InactivityRecord{UserID: uuid.New(), LastCheckIn: now.AddDate(0, 0, -95)}
	store := &sweepStore{records: []models.InactivityRecord{rec}}
	esc := &fakeEscalator{err: fmt.Errorf("user %s: %w", rec.UserID, escalation.ErrNoGuardians)}
	runner := NewRunner(testDeps(store, esc, &fakeDeliverer{}))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.UsersNoGuardians)
	assert.Zero(t, summary.Escalations)
}

func TestRunDeliversOnlyDueCapsules(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.AddDate(0, 0, 7)
	userID := uuid.New()

	due := models.Capsule{ID: uuid.New(), UserID: userID, TriggerType: models.TriggerDateBased, TriggerDate: &past, Status: models.CapsuleScheduled}
	pending := models.Capsule{ID: uuid.New(), UserID: userID, TriggerType: models.TriggerDateBased, TriggerDate: &future, Status: models.CapsuleScheduled}
	broken := models.Capsule{ID: uuid.New(), UserID: userID, TriggerType: models.TriggerDateBased, Status: models.CapsuleScheduled}

	store := &sweepStore{capsules: []models.Capsule{due, pending, broken}}
	del := &fakeDeliverer{result: delivery.Result{Success: true}}
	runner := NewRunner(testDeps(store, &fakeEscalator{}, del))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.CapsulesEvaluated)
	assert.Equal(t, 1, summary.CapsulesDelivered)
	assert.Zero(t, summary.CapsulesFailed)
	assert.Equal(t, []uuid.UUID{due.ID}, del.delivered)
}

func TestRunDeliversDueDeadMansSwitchCapsule(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()
	rec := models.InactivityRecord{UserID: userID, LastCheckIn: now.AddDate(0, 0, -45)}

	c := models.Capsule{
		ID:             uuid.New(),
		UserID:         userID,
		TriggerType:    models.TriggerDeadMansSwitch,
		InactivityDays: 30,
		Status:         models.CapsuleScheduled,
	}
	store := &sweepStore{records: []models.InactivityRecord{rec}, capsules: []models.Capsule{c}}
	del := &fakeDeliverer{result: delivery.Result{Success: true}}
	runner := NewRunner(testDeps(store, &fakeEscalator{}, del))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CapsulesDelivered)
	assert.Equal(t, []uuid.UUID{c.ID}, del.delivered)
}

func TestRunDeliversEventCapsuleOnlyWhenRecorded(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	married := models.Capsule{ID: uuid.New(), UserID: userID, TriggerType: models.TriggerEventBased, EventKey: "wedding", Status: models.CapsuleScheduled}
	waiting := models.Capsule{ID: uuid.New(), UserID: userID, TriggerType: models.TriggerEventBased, EventKey: "graduation", Status: models.CapsuleScheduled}

	store := &sweepStore{
		capsules: []models.Capsule{married, waiting},
		events:   map[uuid.UUID]map[string]bool{userID: {"wedding": true}},
	}
	del := &fakeDeliverer{result: delivery.Result{Success: true}}
	runner := NewRunner(testDeps(store, &fakeEscalator{}, del))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.CapsulesEvaluated)
	assert.Equal(t, []uuid.UUID{married.ID}, del.delivered)
}

func TestRunCountsFailedDeliveries(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	c := models.Capsule{ID: uuid.New(), UserID: uuid.New(), TriggerType: models.TriggerDateBased, TriggerDate: &past, Status: models.CapsuleScheduled}

	store := &sweepStore{capsules: []models.Capsule{c}}
	del := &fakeDeliverer{result: delivery.Result{Success: false, Errors: []string{"smtp down"}}}
	runner := NewRunner(testDeps(store, &fakeEscalator{}, del))

	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CapsulesFailed)
	assert.Zero(t, summary.CapsulesDelivered)
}
