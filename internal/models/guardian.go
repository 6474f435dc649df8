package models

import (
	"time"

	"github.com/google/uuid"
)

// Guardian is a trusted contact authorized to receive notifications on a
// user's behalf. Channel selection is driven by which contact fields are
// set: email, phone (SMS) and/or telegram chat id.
type Guardian struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	TelegramChatID  int64     `json:"telegram_chat_id,omitempty"`
	Relationship    string    `json:"relationship,omitempty"`
	EmergencyAccess bool      `json:"emergency_access"`
	Priority        int       `json:"priority"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// GuardianCreate is the request body for registering a guardian.
type GuardianCreate struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email,omitempty" binding:"omitempty,email"`
	Phone           string `json:"phone,omitempty"`
	TelegramChatID  int64  `json:"telegram_chat_id,omitempty"`
	Relationship    string `json:"relationship,omitempty"`
	EmergencyAccess bool   `json:"emergency_access"`
	Priority        int    `json:"priority"`
}
