package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/billing/internal/api/dto"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/service"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Failed to create subscription", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetClientSubscription returns the client's latest subscription with its
// plan populated.
func (h *SubscriptionHandler) GetClientSubscription(c *gin.Context) {
	clientID := c.Param("id")
	if clientID == "" {
		c.Error(ierr.NewError("client ID is required").
			WithHint("Please provide a valid client ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetSubscription(c.Request.Context(), clientID)
	if err != nil {
		h.log.Error("Failed to get subscription", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) UpgradePlan(c *gin.Context) {
	id := c.Param("id")
	var req dto.UpgradePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpgradePlan(c.Request.Context(), id, req)
	if err != nil {
		h.log.Error("Failed to upgrade plan", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) DowngradePlan(c *gin.Context) {
	id := c.Param("id")
	var req dto.DowngradePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.DowngradePlan(c.Request.Context(), id, req)
	if err != nil {
		h.log.Error("Failed to downgrade plan", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.CancelSubscription(c.Request.Context(), id, req); err != nil {
		h.log.Error("Failed to cancel subscription", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *SubscriptionHandler) ReactivateSubscription(c *gin.Context) {
	id := c.Param("id")

	resp, err := h.service.ReactivateSubscription(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to reactivate subscription", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) SuspendSubscription(c *gin.Context) {
	id := c.Param("id")
	var req dto.SuspendSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.SuspendSubscription(c.Request.Context(), id, req); err != nil {
		h.log.Error("Failed to suspend subscription", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

func (h *SubscriptionHandler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	featureCode := c.Query("feature_code")

	resp, err := h.service.GetUsage(c.Request.Context(), id, featureCode)
	if err != nil {
		h.log.Error("Failed to get usage", "subscription_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
