package models

import (
	"time"

	"github.com/google/uuid"
)

// Capsule lifecycle states. A capsule only ever moves
// draft -> scheduled -> sent|failed, with cancelled reachable
// from draft or scheduled.
const (
	CapsuleDraft     = "draft"
	CapsuleScheduled = "scheduled"
	CapsuleSent      = "sent"
	CapsuleFailed    = "failed"
	CapsuleCancelled = "cancelled"
)

// Trigger types.
const (
	TriggerDateBased         = "date_based"
	TriggerEventBased        = "event_based"
	TriggerDeadMansSwitch    = "dead_mans_switch"
	TriggerGuardianActivated = "guardian_activated"
)

// Delivery methods.
const (
	MethodEmail                = "email"
	MethodGuardianNotification = "guardian_notification"
	MethodLegalNotice          = "legal_notice"
	MethodSocialMedia          = "social_media"
)

// Content types.
const (
	ContentMessage      = "message"
	ContentDocument     = "document"
	ContentMultimedia   = "multimedia"
	ContentInstructions = "instructions"
)

// MaxBodyLength bounds capsule body text at validation time.
const MaxBodyLength = 50000

// Recipient describes who a capsule is addressed to.
type Recipient struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Relationship string `json:"relationship,omitempty"`
}

// BackupRecipient is a fallback recipient with its own delivery delay.
type BackupRecipient struct {
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	DelayDays int    `json:"delay_days"`
}

// Capsule is a pre-authored message or document with delivery and
// trigger configuration. Stored as one row in capsules.
type Capsule struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`

	DeliveryMethod   string            `json:"delivery_method"`
	Recipient        Recipient         `json:"recipient"`
	BackupRecipients []BackupRecipient `json:"backup_recipients,omitempty"`
	PrivacyLevel     string            `json:"privacy_level,omitempty"`
	Jurisdiction     string            `json:"jurisdiction,omitempty"`
	Language         string            `json:"language,omitempty"`

	TriggerType    string     `json:"trigger_type"`
	TriggerDate    *time.Time `json:"trigger_date,omitempty"`
	InactivityDays int        `json:"inactivity_days,omitempty"`
	EventKey       string     `json:"event_key,omitempty"`

	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// CapsuleCreate is the request body for creating a draft capsule.
type CapsuleCreate struct {
	Title            string            `json:"title" binding:"required"`
	ContentType      string            `json:"content_type" binding:"required,oneof=message document multimedia instructions"`
	Body             string            `json:"body" binding:"required"`
	Attachments      []string          `json:"attachments,omitempty"`
	DeliveryMethod   string            `json:"delivery_method" binding:"required,oneof=email guardian_notification legal_notice social_media"`
	Recipient        Recipient         `json:"recipient"`
	BackupRecipients []BackupRecipient `json:"backup_recipients,omitempty"`
	PrivacyLevel     string            `json:"privacy_level,omitempty"`
	Jurisdiction     string            `json:"jurisdiction,omitempty"`
	Language         string            `json:"language,omitempty"`
	TriggerType      string            `json:"trigger_type" binding:"required,oneof=date_based event_based dead_mans_switch guardian_activated"`
	TriggerDate      *time.Time        `json:"trigger_date,omitempty"`
	InactivityDays   int               `json:"inactivity_days,omitempty"`
	EventKey         string            `json:"event_key,omitempty"`
}
