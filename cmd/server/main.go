package main

import (
	"context"
	"time"

	"github.com/relaycrm/billing/internal/api"
	"github.com/relaycrm/billing/internal/api/cron"
	v1 "github.com/relaycrm/billing/internal/api/v1"
	"github.com/relaycrm/billing/internal/cache"
	"github.com/relaycrm/billing/internal/config"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/postgres"
	"github.com/relaycrm/billing/internal/repository"
	"github.com/relaycrm/billing/internal/service"
	"github.com/relaycrm/billing/internal/validator"
	"go.uber.org/fx"

	"github.com/gin-gonic/gin"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewPlanRepository,
			repository.NewInvoiceRepository,
			repository.NewClientRepository,
			repository.NewUsageRepository,
			repository.NewAuditLogger,
		),
		fx.Provide(
			service.NewServiceParams,
			service.NewSubscriptionService,
			service.NewSchedulerService,
		),
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	subscriptionService service.SubscriptionService,
	schedulerService service.SchedulerService,
) api.Handlers {
	return api.Handlers{
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, logger),
		CronSubscription: cron.NewSubscriptionHandler(schedulerService, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
