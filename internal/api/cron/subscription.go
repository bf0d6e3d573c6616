package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/service"
)

// SubscriptionHandler handles subscription related cron jobs
type SubscriptionHandler struct {
	schedulerService service.SchedulerService
	logger           *logger.Logger
}

// NewSubscriptionHandler creates a new subscription cron handler
func NewSubscriptionHandler(
	schedulerService service.SchedulerService,
	logger *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		schedulerService: schedulerService,
		logger:           logger,
	}
}

// ProcessScheduledChanges runs the period-end sweep: trial conversions and
// expiries, deferred cancellations, and scheduled plan changes.
func (h *SubscriptionHandler) ProcessScheduledChanges(c *gin.Context) {
	h.logger.Infow("starting scheduled change sweep cron job")

	response, err := h.schedulerService.ProcessScheduledChanges(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process scheduled changes",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed scheduled change sweep cron job",
		"succeeded", response.TotalSuccess,
		"failed", response.TotalFailed)
	c.JSON(http.StatusOK, response)
}
