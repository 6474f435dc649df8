package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

// Store is what the consumer writes through.
type Store interface {
	TouchActivity(ctx context.Context, userID uuid.UUID, at time.Time) error
	RecordLifeEvent(ctx context.Context, e models.LifeEvent) error
}

// Consumer reads the life-events topic. `activity` messages touch the
// owner's last sign-in; `life_event` messages arm event_based triggers.
type Consumer struct {
	reader *kafka.Reader
	store  Store
	logger *logging.Logger
}

func NewConsumer(broker, topic, groupID string, store Store, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, store: store, logger: logger}
}

type message struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	EventKey   string    `json:"event_key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handle(ctx, msg.Value)
		}
	}()
}

func (c *Consumer) handle(ctx context.Context, value []byte) {
	var m message
	if err := json.Unmarshal(value, &m); err != nil {
		c.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}

	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		c.logger.Errorf("Invalid user_id %q in message: %v", m.UserID, err)
		return
	}
	occurredAt := m.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	switch m.Type {
	case "activity":
		if err := c.store.TouchActivity(ctx, userID, occurredAt); err != nil {
			c.logger.Errorf("Failed to touch activity for user %s: %v", userID, err)
			return
		}
		c.logger.Debugf("Activity touch for user %s", userID)
	case "life_event":
		if m.EventKey == "" {
			c.logger.Errorf("life_event message for user %s is missing event_key", userID)
			return
		}
		event := models.LifeEvent{
			ID:         uuid.New(),
			UserID:     userID,
			EventKey:   m.EventKey,
			OccurredAt: occurredAt,
			RecordedAt: time.Now().UTC(),
		}
		if err := c.store.RecordLifeEvent(ctx, event); err != nil {
			c.logger.Errorf("Failed to record life event %q for user %s: %v", m.EventKey, userID, err)
			return
		}
		c.logger.Infof("Recorded life event %q for user %s", m.EventKey, userID)
	default:
		c.logger.Errorf("Unknown message type %q", m.Type)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
