package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"capsule-service/internal/capsule"
	"capsule-service/internal/db"
	"capsule-service/internal/escalation"
	"capsule-service/internal/feed"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
	"capsule-service/internal/scheduler"
)

type Handler struct {
	db          *db.DB
	capsules    *capsule.Service
	coordinator *escalation.Coordinator
	runner      *scheduler.Runner
	feed        *feed.Manager
	logger      *logging.Logger
}

func NewHandler(database *db.DB, capsules *capsule.Service, coordinator *escalation.Coordinator, runner *scheduler.Runner, feedMgr *feed.Manager, logger *logging.Logger) *Handler {
	return &Handler{
		db:          database,
		capsules:    capsules,
		coordinator: coordinator,
		runner:      runner,
		feed:        feedMgr,
		logger:      logger,
	}
}

// respondError maps domain errors onto HTTP statuses. Validation
// failures carry the full violation list.
func (h *Handler) respondError(c *gin.Context, err error) {
	var vErr *capsule.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "violations": vErr.Violations})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, capsule.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, capsule.ErrInvalidTransition), errors.Is(err, capsule.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, escalation.ErrNoGuardians):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) CreateCapsule(c *gin.Context) {
	var req models.CapsuleCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, estimate, err := h.capsules.Create(c.Request.Context(), currentUserID(c), req, time.Now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"capsule": created, "estimated_delivery": estimate})
}

func (h *Handler) GetCapsules(c *gin.Context) {
	capsules, err := h.db.GetCapsulesByUserID(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, capsules)
}

func (h *Handler) GetCapsule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	stored, err := h.db.GetCapsule(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stored.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "capsule does not belong to user"})
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (h *Handler) ScheduleCapsule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	scheduled, err := h.capsules.Schedule(c.Request.Context(), currentUserID(c), id, time.Now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scheduled)
}

func (h *Handler) CancelCapsule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	if err := h.capsules.Cancel(c.Request.Context(), currentUserID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.CapsuleCancelled})
}

func (h *Handler) RescheduleCapsule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	rescheduled, err := h.capsules.Reschedule(c.Request.Context(), currentUserID(c), id, time.Now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rescheduled)
}

func (h *Handler) ActivateCapsule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	result, err := h.capsules.Activate(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetCapsuleAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capsule id"})
		return
	}
	stored, err := h.db.GetCapsule(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stored.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "capsule does not belong to user"})
		return
	}
	attempts, err := h.db.GetAttemptsByCapsuleID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (h *Handler) CheckIn(c *gin.Context) {
	userID := currentUserID(c)
	if err := h.capsules.CheckIn(c.Request.Context(), userID, time.Now().UTC()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "checked_in", "user_id": userID})
}

func (h *Handler) TriggerEscalation(c *gin.Context) {
	var req struct {
		ActivatedBy string `json:"activated_by"`
	}
	_ = c.ShouldBindJSON(&req)

	userID := currentUserID(c)
	activatedBy := req.ActivatedBy
	if activatedBy == "" {
		activatedBy = userID.String()
	}

	event, err := h.coordinator.TriggerEmergencyProtocol(c.Request.Context(), userID, activatedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) GetEscalations(c *gin.Context) {
	events, err := h.db.GetEscalationEventsByUserID(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) RunScheduler(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) CreateGuardian(c *gin.Context) {
	var req models.GuardianCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email == "" && req.Phone == "" && req.TelegramChatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guardian needs at least one contact channel"})
		return
	}

	g := models.Guardian{
		ID:              uuid.New(),
		UserID:          currentUserID(c),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		TelegramChatID:  req.TelegramChatID,
		Relationship:    req.Relationship,
		EmergencyAccess: req.EmergencyAccess,
		Priority:        req.Priority,
		Status:          "active",
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.db.CreateGuardian(c.Request.Context(), g); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetGuardians(c *gin.Context) {
	guardians, err := h.db.GetActiveGuardians(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, guardians)
}

func (h *Handler) DeleteGuardian(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guardian id"})
		return
	}
	if err := h.db.DeactivateGuardian(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "inactive"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Feed upgrades to a websocket and streams delivery/escalation
// outcomes for the authenticated user.
func (h *Handler) Feed(c *gin.Context) {
	userID := currentUserID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade failed for user %s: %v", userID, err)
		return
	}
	h.feed.AddConnection(userID, conn)
	defer func() {
		h.feed.RemoveConnection(userID, conn)
		_ = conn.Close()
	}()

	// Reads are discarded; the socket exists for server push only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
