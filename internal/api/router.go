package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"capsule-service/internal/config"
	"capsule-service/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		cron := api.Group("/cron", CronAuthMiddleware(cfg.API.CronSecret))
		{
			cron.POST("/run", h.RunScheduler)
		}

		user := api.Group("", UserAuthMiddleware())
		{
			user.POST("/capsules", h.CreateCapsule)
			user.GET("/capsules", h.GetCapsules)
			user.GET("/capsules/:id", h.GetCapsule)
			user.POST("/capsules/:id/schedule", h.ScheduleCapsule)
			user.POST("/capsules/:id/cancel", h.CancelCapsule)
			user.POST("/capsules/:id/reschedule", h.RescheduleCapsule)
			user.POST("/capsules/:id/activate", h.ActivateCapsule)
			user.GET("/capsules/:id/attempts", h.GetCapsuleAttempts)

			user.POST("/checkin", h.CheckIn)
			user.POST("/escalations/trigger", h.TriggerEscalation)
			user.GET("/escalations", h.GetEscalations)

			user.POST("/guardians", h.CreateGuardian)
			user.GET("/guardians", h.GetGuardians)
			user.DELETE("/guardians/:id", h.DeleteGuardian)

			user.GET("/ws", h.Feed)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
