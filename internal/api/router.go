package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/billing/internal/api/cron"
	v1 "github.com/relaycrm/billing/internal/api/v1"
	"github.com/relaycrm/billing/internal/rest/middleware"
)

type Handlers struct {
	Subscription     *v1.SubscriptionHandler
	CronSubscription *cron.SubscriptionHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.TenantContextMiddleware)
	registerV1Routes(v1Group, handlers)

	// Cron routes run system-wide, not under a tenant header
	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.POST("/:id/upgrade", handlers.Subscription.UpgradePlan)
		subscriptions.POST("/:id/downgrade", handlers.Subscription.DowngradePlan)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/reactivate", handlers.Subscription.ReactivateSubscription)
		subscriptions.POST("/:id/suspend", handlers.Subscription.SuspendSubscription)
		subscriptions.GET("/:id/usage", handlers.Subscription.GetUsage)
	}

	clients := router.Group("/clients")
	{
		clients.GET("/:id/subscription", handlers.Subscription.GetClientSubscription)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/process-scheduled-changes", handlers.CronSubscription.ProcessScheduledChanges)
	}
}
