package service

import (
	"context"
	"sync"
	"time"

	"github.com/relaycrm/billing/internal/api/dto"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// Applied-change labels reported per swept subscription
const (
	changeNone               = "none"
	changeScheduledUpgrade   = "scheduled_upgrade"
	changeScheduledDowngrade = "scheduled_downgrade"
	changeCancelAtPeriodEnd  = "cancel_at_period_end"
	changeTrialConverted     = "trial_converted"
	changeTrialExpired       = "trial_expired"
)

const (
	auditActionUpgradeApplied   = "subscription.upgrade_applied"
	auditActionDowngradeApplied = "subscription.downgrade_applied"
	auditActionTrialConverted   = "subscription.trial_converted"
	auditActionExpired          = "subscription.expired"
)

// SchedulerService runs the scheduled change sweep: it finds live
// subscriptions whose billing period has elapsed and applies the pending
// transition for each one independently.
type SchedulerService interface {
	ProcessScheduledChanges(ctx context.Context) (*dto.ScheduledChangesResponse, error)
}

type schedulerService struct {
	ServiceParams
}

func NewSchedulerService(params ServiceParams) SchedulerService {
	return &schedulerService{
		ServiceParams: params,
	}
}

func (s *schedulerService) ProcessScheduledChanges(ctx context.Context) (*dto.ScheduledChangesResponse, error) {
	now := time.Now().UTC()
	response := &dto.ScheduledChangesResponse{
		Items:     make([]*dto.ScheduledChangeItem, 0),
		StartedAt: now,
	}

	due, err := s.collectDueSubscriptions(ctx, now)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting scheduled change sweep",
		"due_count", len(due),
		"as_of", now)

	var mu sync.Mutex
	workers := s.Config.Billing.SweepWorkers
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, sub := range due {
		sub := sub
		p.Go(func() {
			item := s.processDueSubscription(ctx, sub, now)

			mu.Lock()
			defer mu.Unlock()
			response.Items = append(response.Items, item)
			if item.Success {
				response.TotalSuccess++
			} else {
				response.TotalFailed++
			}
		})
	}
	p.Wait()

	response.CompletedAt = time.Now().UTC()

	s.Logger.Infow("completed scheduled change sweep",
		"processed", len(response.Items),
		"succeeded", response.TotalSuccess,
		"failed", response.TotalFailed)

	return response, nil
}

// collectDueSubscriptions snapshots every live subscription whose period end
// has elapsed, paging before any mutation so that applied transitions cannot
// shift the result set mid-scan.
func (s *schedulerService) collectDueSubscriptions(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	batchSize := s.Config.Billing.SweepBatchSize
	if batchSize < 1 {
		batchSize = 100
	}

	due := make([]*subscription.Subscription, 0)
	offset := 0
	for {
		filter := types.NewSubscriptionFilter()
		filter.Limit = lo.ToPtr(batchSize)
		filter.Offset = lo.ToPtr(offset)
		filter.SubscriptionStatus = types.SubscriptionStatusLive
		filter.PeriodEndBefore = &asOf

		page, err := s.SubRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		due = append(due, page...)
		if len(page) < batchSize {
			return due, nil
		}
		offset += batchSize
	}
}

// processDueSubscription applies at most one transition to a due
// subscription. Failures are reported per item and never abort the sweep.
func (s *schedulerService) processDueSubscription(ctx context.Context, sub *subscription.Subscription, now time.Time) *dto.ScheduledChangeItem {
	// The sweep runs without tenant context; scope each item to its owner so
	// audit events and any follow-up reads land in the right tenant.
	ctx = types.SetTenantID(ctx, sub.TenantID)

	item := &dto.ScheduledChangeItem{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
	}

	applied, err := s.applyDueTransition(ctx, sub, now)
	item.AppliedChange = applied
	if err != nil {
		item.Success = false
		item.Error = err.Error()
		s.Logger.Errorw("failed to apply scheduled change",
			"subscription_id", sub.ID,
			"attempted_change", applied,
			"error", err)
		return item
	}

	item.Success = true
	return item
}

// applyDueTransition picks the pending change by precedence and persists it.
// A subscription that turns out not to be due is reported as "none", which
// makes sweeps safe to re-run.
func (s *schedulerService) applyDueTransition(ctx context.Context, sub *subscription.Subscription, now time.Time) (string, error) {
	if !sub.IsLive() || sub.CurrentPeriodEnd.After(now) {
		return changeNone, nil
	}

	oldState := *sub

	switch {
	case sub.Metadata.ScheduledUpgrade != nil:
		meta := sub.Metadata.ScheduledUpgrade
		sub.PlanID = meta.NewPlanID
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		s.rollBillingPeriod(sub)
		sub.Metadata.ScheduledUpgrade = nil

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return changeScheduledUpgrade, err
		}
		s.emitAuditEvent(ctx, auditActionUpgradeApplied, sub.ID, &oldState, sub)
		return changeScheduledUpgrade, nil

	case sub.Metadata.ScheduledDowngrade != nil:
		meta := sub.Metadata.ScheduledDowngrade
		sub.PlanID = meta.NewPlanID
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		s.rollBillingPeriod(sub)
		sub.Metadata.ScheduledDowngrade = nil

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return changeScheduledDowngrade, err
		}
		s.emitAuditEvent(ctx, auditActionDowngradeApplied, sub.ID, &oldState, sub)
		return changeScheduledDowngrade, nil

	case sub.Metadata.IsCancelAtPeriodEnd():
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.Metadata.CancelAtPeriodEnd = nil

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return changeCancelAtPeriodEnd, err
		}
		s.emitAuditEvent(ctx, auditActionCancelled, sub.ID, &oldState, sub)
		return changeCancelAtPeriodEnd, nil

	case sub.SubscriptionStatus == types.SubscriptionStatusTrial:
		// A trial past its end converts when a payment method is on file and
		// expires otherwise.
		if sub.PaymentMethodID != nil && *sub.PaymentMethodID != "" {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			s.rollBillingPeriod(sub)

			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return changeTrialConverted, err
			}
			s.emitAuditEvent(ctx, auditActionTrialConverted, sub.ID, &oldState, sub)
			return changeTrialConverted, nil
		}

		sub.SubscriptionStatus = types.SubscriptionStatusExpired

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return changeTrialExpired, err
		}
		s.emitAuditEvent(ctx, auditActionExpired, sub.ID, &oldState, sub)
		return changeTrialExpired, nil
	}

	return changeNone, nil
}

// rollBillingPeriod advances the billing window one cycle, anchored at the
// elapsed period end so back-to-back periods stay contiguous.
func (s *schedulerService) rollBillingPeriod(sub *subscription.Subscription) {
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = types.NextBillingDate(sub.CurrentPeriodStart, sub.BillingCycle)
}
