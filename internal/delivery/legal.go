package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"capsule-service/internal/models"
	"capsule-service/pkg/pdf"
)

// Renderer is the opaque external PDF service: structured notice in,
// binary artifact out.
type Renderer interface {
	Render(ctx context.Context, notice pdf.Notice) ([]byte, error)
}

// ArtifactStore persists rendered legal notices.
type ArtifactStore interface {
	SaveLegalArtifact(ctx context.Context, capsuleID uuid.UUID, sha256Hex string, data []byte) error
}

// LegalAdapter renders a jurisdiction-aware formal notice and persists
// the artifact. legal_notice_generated is set only after persistence
// succeeds; a render failure leaves no partial artifact behind.
type LegalAdapter struct {
	renderer  Renderer
	artifacts ArtifactStore
}

func NewLegalAdapter(renderer Renderer, artifacts ArtifactStore) *LegalAdapter {
	return &LegalAdapter{renderer: renderer, artifacts: artifacts}
}

func (a *LegalAdapter) Deliver(ctx context.Context, c models.Capsule) Result {
	notice := pdf.Notice{
		Title:        c.Title,
		Body:         c.Body,
		Jurisdiction: c.Jurisdiction,
		Language:     c.Language,
		Recipient:    fmt.Sprintf("%s <%s>", c.Recipient.Name, c.Recipient.Contact),
		Attachments:  c.Attachments,
	}

	data, err := a.renderer.Render(ctx, notice)
	if err != nil {
		return failure(models.MethodLegalNotice, fmt.Sprintf("notice rendering failed: %v", err))
	}

	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	if err := a.artifacts.SaveLegalArtifact(ctx, c.ID, ref, data); err != nil {
		return failure(models.MethodLegalNotice, fmt.Sprintf("failed to persist notice artifact: %v", err))
	}

	return Result{
		Success:              true,
		Channel:              models.MethodLegalNotice,
		DeliveredAt:          time.Now().UTC(),
		LegalNoticeGenerated: true,
		ArtifactRef:          "sha256:" + ref,
		TrackingID:           uuid.New().String(),
	}
}
