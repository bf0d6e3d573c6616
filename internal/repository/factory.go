package repository

import (
	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/cache"
	"github.com/relaycrm/billing/internal/domain/audit"
	"github.com/relaycrm/billing/internal/domain/client"
	"github.com/relaycrm/billing/internal/domain/invoice"
	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/domain/usage"
	"github.com/relaycrm/billing/internal/logger"
	postgresRepo "github.com/relaycrm/billing/internal/repository/postgres"
)

func NewSubscriptionRepository(db *sqlx.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewPlanRepository(db *sqlx.DB, logger *logger.Logger, cache cache.Cache) plan.Repository {
	return postgresRepo.NewPlanRepository(db, logger, cache)
}

func NewInvoiceRepository(db *sqlx.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewClientRepository(db *sqlx.DB, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}

func NewUsageRepository(db *sqlx.DB, logger *logger.Logger) usage.Repository {
	return postgresRepo.NewUsageRepository(db, logger)
}

func NewAuditLogger(db *sqlx.DB, logger *logger.Logger) audit.Logger {
	return postgresRepo.NewAuditLogger(db, logger)
}
