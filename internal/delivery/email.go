package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/config"
	"capsule-service/internal/models"
	"capsule-service/pkg/email"
)

// EmailAdapter delivers a capsule to its primary recipient's email
// address. Success reflects transport acceptance, not a read receipt.
type EmailAdapter struct {
	cfg config.Config
}

func NewEmailAdapter(cfg config.Config) *EmailAdapter {
	return &EmailAdapter{cfg: cfg}
}

func (a *EmailAdapter) Deliver(ctx context.Context, c models.Capsule) Result {
	to := c.Recipient.Contact
	if to == "" {
		return failure(models.MethodEmail, "recipient email address is empty")
	}

	subject := fmt.Sprintf("A time capsule from the past: %s", c.Title)
	body := formatCapsuleBody(c)

	if err := email.Send(a.cfg.Email.SMTPServer, a.cfg.Email.SMTPPort,
		a.cfg.Email.Username, a.cfg.Email.Password, a.cfg.Email.FromName,
		to, subject, body); err != nil {
		return failure(models.MethodEmail, fmt.Sprintf("failed to send email to %s: %v", to, err))
	}

	return Result{
		Success:     true,
		Channel:     models.MethodEmail,
		DeliveredAt: time.Now().UTC(),
		TrackingID:  uuid.New().String(),
	}
}

func formatCapsuleBody(c models.Capsule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", c.Recipient.Name)
	fmt.Fprintf(&b, "The following %s was prepared for you in advance:\n\n", c.ContentType)
	b.WriteString(c.Body)
	if len(c.Attachments) > 0 {
		fmt.Fprintf(&b, "\n\nAttachments:\n")
		for _, ref := range c.Attachments {
			fmt.Fprintf(&b, "  - %s\n", ref)
		}
	}
	fmt.Fprintf(&b, "\n\nThis message was composed on %s and delivered on schedule.\n", c.CreatedAt.Format("January 2, 2006"))
	return b.String()
}
