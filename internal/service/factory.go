package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/relaycrm/billing/internal/config"
	"github.com/relaycrm/billing/internal/domain/audit"
	"github.com/relaycrm/billing/internal/domain/client"
	"github.com/relaycrm/billing/internal/domain/invoice"
	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/proration"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/domain/usage"
	"github.com/relaycrm/billing/internal/logger"
)

// ServiceParams bundles the injected dependencies shared by all services.
// There is no package-level service state; tests substitute any collaborator.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Owned repository
	SubRepo subscription.Repository

	// External collaborators
	PlanRepo    plan.Repository
	InvoiceRepo invoice.Repository
	ClientRepo  client.Repository
	UsageRepo   usage.Repository
	AuditLogger audit.Logger

	ProrationCalculator proration.Calculator
}

// NewServiceParams assembles the shared service dependencies for injection
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	subRepo subscription.Repository,
	planRepo plan.Repository,
	invoiceRepo invoice.Repository,
	clientRepo client.Repository,
	usageRepo usage.Repository,
	auditLogger audit.Logger,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		SubRepo:             subRepo,
		PlanRepo:            planRepo,
		InvoiceRepo:         invoiceRepo,
		ClientRepo:          clientRepo,
		UsageRepo:           usageRepo,
		AuditLogger:         auditLogger,
		ProrationCalculator: proration.NewCalculator(),
	}
}

const (
	sideEffectMaxRetries   = 2
	sideEffectRetryInitial = 100 * time.Millisecond
)

// withRetry runs a best-effort side effect with a short exponential backoff.
// Exhaustion is returned to the caller for logging, never for rollback.
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = sideEffectRetryInitial
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, sideEffectMaxRetries), ctx))
}

// emitAuditEvent records a before/after snapshot for a subscription
// transition. Audit failures are logged and swallowed - the transition has
// already been persisted and must not be rolled back.
func (p ServiceParams) emitAuditEvent(ctx context.Context, action string, subID string, oldState, newState any) {
	event := audit.NewEvent(ctx, action, "subscription", subID, oldState, newState)

	err := withRetry(ctx, func() error {
		return p.AuditLogger.LogEvent(ctx, event)
	})
	if err != nil {
		p.Logger.Errorw("failed to emit audit event",
			"action", action,
			"subscription_id", subID,
			"error", err)
	}
}
