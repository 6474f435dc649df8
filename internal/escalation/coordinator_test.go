package escalation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

type fakeStore struct {
	guardians    []models.Guardian
	guardiansErr error
	record       models.InactivityRecord
	recordErr    error

	mu     sync.Mutex
	events []models.EscalationEvent
	marked []models.Tier
}

func (f *fakeStore) GetActiveGuardians(ctx context.Context, userID uuid.UUID) ([]models.Guardian, error) {
	return f.guardians, f.guardiansErr
}

func (f *fakeStore) GetInactivityRecord(ctx context.Context, userID uuid.UUID) (models.InactivityRecord, error) {
	return f.record, f.recordErr
}

func (f *fakeStore) CreateEscalationEvent(ctx context.Context, e models.EscalationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStore) MarkEscalated(ctx context.Context, userID uuid.UUID, tier models.Tier, level int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, tier)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   int
	failFor map[uuid.UUID]bool
}

func (f *fakeNotifier) Notify(ctx context.Context, g models.Guardian, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFor[g.ID] {
		return errors.New("channel unreachable")
	}
	return nil
}

func testLogger() *logging.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logging.Logger{Logger: l}
}

func guardian(emergency bool) models.Guardian {
	return models.Guardian{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Name:            "Test Guardian",
		Email:           "guardian@example.com",
		EmergencyAccess: emergency,
		Status:          "active",
	}
}

func TestProcessNotifiesOnTierAdvance(t *testing.T) {
	now := time.Now().UTC()
	g := guardian(true)
	store := &fakeStore{guardians: []models.Guardian{g}}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{
		UserID:           uuid.New(),
		LastCheckIn:      now.AddDate(0, 0, -31),
		DaysInactive:     31,
		LastNotifiedTier: models.TierNone,
		EscalationLevel:  0,
	}

	event, err := c.Process(context.Background(), rec, models.TierWarning, now)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.TierWarning, event.Tier)
	assert.Equal(t, 1, event.Level)
	assert.Equal(t, models.EscalationAutomatic, event.Source)
	assert.Equal(t, []uuid.UUID{g.ID}, event.GuardiansNotified)
	assert.Equal(t, 1, notifier.calls)
	assert.Len(t, store.events, 1)
	assert.Len(t, store.marked, 1)
}

func TestProcessIsIdempotentAtSameTier(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-1 * time.Hour)
	store := &fakeStore{guardians: []models.Guardian{guardian(true)}}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{
		UserID:           uuid.New(),
		LastNotifiedTier: models.TierWarning,
		LastEscalatedAt:  &recent,
		EscalationLevel:  1,
	}

	event, err := c.Process(context.Background(), rec, models.TierWarning, now)
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Zero(t, notifier.calls)
	assert.Empty(t, store.events)
}

func TestProcessRenotifiesAfterCooldown(t *testing.T) {
	now := time.Now().UTC()
	stale := now.Add(-100 * time.Hour)
	store := &fakeStore{guardians: []models.Guardian{guardian(true)}}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{
		UserID:           uuid.New(),
		LastNotifiedTier: models.TierCritical,
		LastEscalatedAt:  &stale,
		EscalationLevel:  2,
	}

	event, err := c.Process(context.Background(), rec, models.TierCritical, now)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, 3, event.Level)
	assert.Equal(t, 1, notifier.calls)
}

func TestProcessSkipsTierNone(t *testing.T) {
	store := &fakeStore{guardians: []models.Guardian{guardian(true)}}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	event, err := c.Process(context.Background(), models.InactivityRecord{UserID: uuid.New()}, models.TierNone, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Zero(t, notifier.calls)
}

func TestProcessFailsWithoutEmergencyGuardians(t *testing.T) {
	store := &fakeStore{guardians: []models.Guardian{guardian(false)}}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{UserID: uuid.New(), LastNotifiedTier: models.TierNone}
	_, err := c.Process(context.Background(), rec, models.TierEmergency, time.Now().UTC())
	assert.ErrorIs(t, err, ErrNoGuardians)
	assert.Zero(t, notifier.calls)
	assert.Empty(t, store.events)
}

func TestProcessRecordsOnlyReachedGuardians(t *testing.T) {
	now := time.Now().UTC()
	reachable := guardian(true)
	broken := guardian(true)
	store := &fakeStore{guardians: []models.Guardian{reachable, broken}}
	notifier := &fakeNotifier{failFor: map[uuid.UUID]bool{broken.ID: true}}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{UserID: uuid.New(), LastNotifiedTier: models.TierNone}
	event, err := c.Process(context.Background(), rec, models.TierCritical, now)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, []uuid.UUID{reachable.ID}, event.GuardiansNotified)
	assert.Equal(t, 2, notifier.calls)
}

func TestProcessFailsWhenNoGuardianReached(t *testing.T) {
	g := guardian(true)
	store := &fakeStore{guardians: []models.Guardian{g}}
	notifier := &fakeNotifier{failFor: map[uuid.UUID]bool{g.ID: true}}
	c := New(store, notifier, 72*time.Hour, testLogger())

	rec := models.InactivityRecord{UserID: uuid.New(), LastNotifiedTier: models.TierNone}
	_, err := c.Process(context.Background(), rec, models.TierWarning, time.Now().UTC())
	assert.Error(t, err)
	assert.Empty(t, store.events)
}

func TestTriggerEmergencyProtocol(t *testing.T) {
	g := guardian(true)
	store := &fakeStore{
		guardians: []models.Guardian{g},
		record:    models.InactivityRecord{EscalationLevel: 2},
	}
	notifier := &fakeNotifier{}
	c := New(store, notifier, 72*time.Hour, testLogger())

	userID := uuid.New()
	event, err := c.TriggerEmergencyProtocol(context.Background(), userID, "guardian:jane")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.TierEmergency, event.Tier)
	assert.Equal(t, models.EscalationManual, event.Source)
	assert.Equal(t, "guardian:jane", event.ActivatedBy)
	assert.Equal(t, 3, event.Level)
	assert.Equal(t, 1, notifier.calls)
}

func TestTriggerEmergencyProtocolRequiresGuardians(t *testing.T) {
	store := &fakeStore{}
	c := New(store, &fakeNotifier{}, 72*time.Hour, testLogger())

	_, err := c.TriggerEmergencyProtocol(context.Background(), uuid.New(), "support")
	assert.ErrorIs(t, err, ErrNoGuardians)
}
