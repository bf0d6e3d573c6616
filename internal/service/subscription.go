package service

import (
	"context"
	"time"

	"github.com/relaycrm/billing/internal/api/dto"
	"github.com/relaycrm/billing/internal/domain/invoice"
	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/proration"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/domain/usage"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// invoiceDueDays is how long after emission a proration invoice falls due
const invoiceDueDays = 7

// Audit actions emitted by the lifecycle engine
const (
	auditActionCreated               = "subscription.created"
	auditActionUpgraded              = "subscription.upgraded"
	auditActionUpgradeScheduled      = "subscription.upgrade_scheduled"
	auditActionDowngradeScheduled    = "subscription.downgrade_scheduled"
	auditActionCancelled             = "subscription.cancelled"
	auditActionCancellationScheduled = "subscription.cancellation_scheduled"
	auditActionReactivated           = "subscription.reactivated"
	auditActionSuspended             = "subscription.suspended"
)

// SubscriptionService is the lifecycle engine: every mutation of a
// subscription goes through one of these operations as an atomic
// read-modify-write guarded by the repository's version check.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	UpgradePlan(ctx context.Context, id string, req dto.UpgradePlanRequest) (*dto.SubscriptionResponse, error)
	DowngradePlan(ctx context.Context, id string, req dto.DowngradePlanRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) error
	ReactivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	SuspendSubscription(ctx context.Context, id string, req dto.SuspendSubscriptionRequest) error
	// GetSubscription returns the client's latest subscription with its plan populated
	GetSubscription(ctx context.Context, clientID string) (*dto.SubscriptionResponse, error)
	GetUsage(ctx context.Context, subscriptionID string, featureCode string) (*dto.GetUsageResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	newPlan, err := s.getActivePlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNoLiveSubscription(ctx, req.ClientID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ClientID:           req.ClientID,
		PlanID:             newPlan.ID,
		BillingCycle:       req.BillingCycle,
		CurrentPeriodStart: now,
		PaymentMethodID:    req.PaymentMethodID,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	if newPlan.HasTrial() {
		trialEnd := now.AddDate(0, 0, newPlan.TrialDays)
		sub.SubscriptionStatus = types.SubscriptionStatusTrial
		sub.TrialEndsAt = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.CurrentPeriodEnd = types.NextBillingDate(now, req.BillingCycle)
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID,
		"plan_id", sub.PlanID,
		"status", sub.SubscriptionStatus)

	s.emitAuditEvent(ctx, auditActionCreated, sub.ID, nil, sub)

	return &dto.SubscriptionResponse{Subscription: sub, Plan: newPlan}, nil
}

func (s *subscriptionService) UpgradePlan(ctx context.Context, id string, req dto.UpgradePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newPlan, err := s.getActivePlan(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}

	oldState := *sub

	if !req.Immediate {
		sub.Metadata.Merge(subscription.ChangeMetadata{
			ScheduledUpgrade: &subscription.ScheduledUpgrade{
				NewPlanID:     newPlan.ID,
				EffectiveDate: sub.CurrentPeriodEnd,
			},
		})

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}

		s.Logger.Infow("scheduled plan upgrade",
			"subscription_id", sub.ID,
			"new_plan_id", newPlan.ID,
			"effective_date", sub.CurrentPeriodEnd)

		s.emitAuditEvent(ctx, auditActionUpgradeScheduled, sub.ID, &oldState, sub)

		currentPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return nil, err
		}
		return &dto.SubscriptionResponse{Subscription: sub, Plan: currentPlan}, nil
	}

	oldPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.ProrationCalculator.Calculate(ctx, proration.Params{
		SubscriptionID:      sub.ID,
		CurrentPeriodStart:  sub.CurrentPeriodStart,
		CurrentPeriodEnd:    sub.CurrentPeriodEnd,
		ProrationDate:       now,
		OldPlanID:           oldPlan.ID,
		NewPlanID:           newPlan.ID,
		OldPlanPriceMonthly: oldPlan.PriceMonthly,
		NewPlanPriceMonthly: newPlan.PriceMonthly,
	})
	if err != nil {
		return nil, err
	}

	sub.PlanID = newPlan.ID
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.ProrationDate = &now
	sub.Metadata.Merge(subscription.ChangeMetadata{
		LastUpgrade: &subscription.UpgradeRecord{
			FromPlanID: oldPlan.ID,
			ToPlanID:   newPlan.ID,
			Proration:  result.NetAmount,
			Date:       now,
		},
	})
	// An immediate upgrade supersedes any pending scheduled upgrade.
	sub.Metadata.ScheduledUpgrade = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("upgraded subscription plan",
		"subscription_id", sub.ID,
		"from_plan_id", oldPlan.ID,
		"to_plan_id", newPlan.ID,
		"proration_amount", result.NetAmount,
		"remaining_days", result.RemainingDays)

	// Invoice only a positive net amount; zero or negative means nothing owed.
	if result.NetAmount.GreaterThan(decimal.Zero) {
		s.emitProrationInvoice(ctx, sub, oldPlan, newPlan, result)
	}

	s.emitAuditEvent(ctx, auditActionUpgraded, sub.ID, &oldState, sub)

	return &dto.SubscriptionResponse{Subscription: sub, Plan: newPlan}, nil
}

func (s *subscriptionService) DowngradePlan(ctx context.Context, id string, req dto.DowngradePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newPlan, err := s.getActivePlan(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}

	oldState := *sub

	// Downgrades always defer to period end; applying them mid-cycle would
	// require refund handling.
	sub.Metadata.Merge(subscription.ChangeMetadata{
		ScheduledDowngrade: &subscription.ScheduledDowngrade{
			NewPlanID:     newPlan.ID,
			EffectiveDate: sub.CurrentPeriodEnd,
			CurrentPlanID: sub.PlanID,
		},
	})

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("scheduled plan downgrade",
		"subscription_id", sub.ID,
		"new_plan_id", newPlan.ID,
		"effective_date", sub.CurrentPeriodEnd)

	s.emitAuditEvent(ctx, auditActionDowngradeScheduled, sub.ID, &oldState, sub)

	currentPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub, Plan: currentPlan}, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	oldState := *sub
	now := time.Now().UTC()

	// cancelled_at records when cancellation was requested on both paths;
	// for a period-end cancellation the status flip happens in the sweep.
	sub.CancelledAt = &now
	sub.CancelReason = lo.ToPtr(req.Reason)

	action := auditActionCancellationScheduled
	if req.Immediate {
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		action = auditActionCancelled
	} else {
		sub.Metadata.Merge(subscription.ChangeMetadata{
			CancelAtPeriodEnd: lo.ToPtr(true),
		})
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.Logger.Infow("cancelled subscription",
		"subscription_id", sub.ID,
		"immediate", req.Immediate,
		"reason", req.Reason)

	s.emitAuditEvent(ctx, action, sub.ID, &oldState, sub)
	return nil
}

func (s *subscriptionService) ReactivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reactivatable := []types.SubscriptionStatus{
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusSuspended,
	}
	if !lo.Contains(reactivatable, sub.SubscriptionStatus) {
		return nil, ierr.NewError("subscription is not reactivatable").
			WithHintf("Only cancelled, expired or suspended subscriptions can be reactivated, current status is %s", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// Reactivation brings a live subscription back, so the one-live-sub
	// constraint applies the same as at creation.
	if err := s.ensureNoLiveSubscription(ctx, sub.ClientID); err != nil {
		return nil, err
	}

	oldState := *sub
	now := time.Now().UTC()

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CancelledAt = nil
	sub.CancelReason = nil
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = types.NextBillingDate(now, sub.BillingCycle)
	sub.Metadata.Merge(subscription.ChangeMetadata{
		ReactivatedAt: &now,
	})
	sub.Metadata.CancelAtPeriodEnd = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("reactivated subscription",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID)

	s.emitAuditEvent(ctx, auditActionReactivated, sub.ID, &oldState, sub)

	currentPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub, Plan: currentPlan}, nil
}

func (s *subscriptionService) SuspendSubscription(ctx context.Context, id string, req dto.SuspendSubscriptionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	oldState := *sub
	now := time.Now().UTC()

	sub.SubscriptionStatus = types.SubscriptionStatusSuspended
	sub.Metadata.Merge(subscription.ChangeMetadata{
		SuspendedAt:   &now,
		SuspendReason: lo.ToPtr(req.Reason),
	})

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.Logger.Infow("suspended subscription",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID,
		"reason", req.Reason)

	s.emitAuditEvent(ctx, auditActionSuspended, sub.ID, &oldState, sub)

	// Cascade to the client account. The subscription state is already
	// committed; a cascade failure is logged for remediation, not returned.
	cascadeErr := withRetry(ctx, func() error {
		return s.ClientRepo.SetStatus(ctx, sub.ClientID, types.ClientStatusSuspended)
	})
	if cascadeErr != nil {
		s.Logger.Errorw("failed to cascade suspension to client account",
			"subscription_id", sub.ID,
			"client_id", sub.ClientID,
			"error", cascadeErr)
	}

	return nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, clientID string) (*dto.SubscriptionResponse, error) {
	if clientID == "" {
		return nil, ierr.NewError("client id is required").
			WithHint("Please provide a valid client ID").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.GetLatestByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	currentPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	return &dto.SubscriptionResponse{Subscription: sub, Plan: currentPlan}, nil
}

func (s *subscriptionService) GetUsage(ctx context.Context, subscriptionID string, featureCode string) (*dto.GetUsageResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	items, err := s.UsageRepo.Query(ctx, &usage.QueryParams{
		SubscriptionID: sub.ID,
		FeatureCode:    featureCode,
		At:             time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Quantity)
	}

	return &dto.GetUsageResponse{
		Items:         items,
		TotalQuantity: total,
	}, nil
}

/// Helpers

// getActivePlan loads a plan and requires it to be assignable. A missing or
// inactive plan is NotFound either way - callers cannot distinguish retired
// plans from never-existing ones.
func (s *subscriptionService) getActivePlan(ctx context.Context, planID string) (*plan.Plan, error) {
	p, err := s.PlanRepo.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	if !p.IsActive() {
		return nil, ierr.NewError("plan is not active").
			WithHint("The plan is no longer available").
			WithReportableDetails(map[string]any{
				"plan_id": planID,
				"status":  p.Status,
			}).
			Mark(ierr.ErrNotFound)
	}

	return p, nil
}

// ensureNoLiveSubscription enforces the one-live-subscription-per-client
// invariant at assignment time.
func (s *subscriptionService) ensureNoLiveSubscription(ctx context.Context, clientID string) error {
	filter := types.NewNoLimitSubscriptionFilter()
	filter.ClientID = clientID
	filter.SubscriptionStatus = types.SubscriptionStatusLive

	count, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return err
	}

	if count > 0 {
		return ierr.NewError("client already has a live subscription").
			WithHint("The client already holds an active or trial subscription").
			WithReportableDetails(map[string]any{
				"client_id": clientID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return nil
}

// emitProrationInvoice hands a positive proration charge to the invoice
// store. The plan change is already committed; emission failures are logged
// for remediation, never surfaced to the caller.
func (s *subscriptionService) emitProrationInvoice(ctx context.Context, sub *subscription.Subscription, oldPlan, newPlan *plan.Plan, result *proration.Result) {
	now := time.Now().UTC()
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		ClientID:       sub.ClientID,
		SubscriptionID: sub.ID,
		Amount:         result.NetAmount,
		TaxAmount:      decimal.Zero,
		TotalAmount:    result.NetAmount,
		InvoiceStatus:  types.InvoiceStatusPending,
		DueDate:        now.AddDate(0, 0, invoiceDueDays),
		LineItems: invoice.LineItems{
			{
				Description: "Unused time on " + oldPlan.Name,
				PlanID:      oldPlan.ID,
				Amount:      result.OldPlanCredit.Neg(),
				PeriodStart: result.ProrationDate,
				PeriodEnd:   sub.CurrentPeriodEnd,
			},
			{
				Description: "Remaining time on " + newPlan.Name,
				PlanID:      newPlan.ID,
				Amount:      result.NewPlanCost,
				PeriodStart: result.ProrationDate,
				PeriodEnd:   sub.CurrentPeriodEnd,
			},
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	err := withRetry(ctx, func() error {
		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		s.Logger.Errorw("failed to emit proration invoice",
			"subscription_id", sub.ID,
			"amount", result.NetAmount,
			"error", err)
		return
	}

	s.Logger.Infow("emitted proration invoice",
		"invoice_id", inv.ID,
		"subscription_id", sub.ID,
		"amount", result.NetAmount)
}
