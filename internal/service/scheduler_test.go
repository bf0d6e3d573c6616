package service

import (
	"errors"
	"testing"
	"time"

	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/testutil"
	"github.com/relaycrm/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SchedulerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SchedulerService
}

func TestSchedulerService(t *testing.T) {
	suite.Run(t, new(SchedulerServiceSuite))
}

func (s *SchedulerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewSchedulerService(NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		stores.SubscriptionRepo,
		stores.PlanRepo,
		stores.InvoiceRepo,
		stores.ClientRepo,
		stores.UsageRepo,
		stores.AuditLogger,
	))
}

// seedSubscription stores an active monthly subscription whose period elapsed
// an hour ago, then applies the given mutators.
func (s *SchedulerServiceSuite) seedSubscription(mutators ...func(*subscription.Subscription)) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ClientID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		PlanID:             "plan_basic",
		SubscriptionStatus: types.SubscriptionStatusActive,
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: s.GetNow().AddDate(0, -1, 0).Add(-time.Hour),
		CurrentPeriodEnd:   s.GetNow().Add(-time.Hour),
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	for _, m := range mutators {
		m(sub)
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *SchedulerServiceSuite) reload(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.NoError(err)
	return sub
}

func (s *SchedulerServiceSuite) TestSweepAppliesScheduledUpgrade() {
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.ScheduledUpgrade = &subscription.ScheduledUpgrade{
			NewPlanID:     "plan_pro",
			EffectiveDate: sub.CurrentPeriodEnd,
		}
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.TotalSuccess)
	s.Equal(0, resp.TotalFailed)
	s.Len(resp.Items, 1)
	s.Equal("scheduled_upgrade", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal("plan_pro", sub.PlanID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Nil(sub.Metadata.ScheduledUpgrade)
	s.Equal(seeded.CurrentPeriodEnd, sub.CurrentPeriodStart, "new period must start where the old one ended")
	s.True(sub.CurrentPeriodEnd.After(s.GetNow()))
}

func (s *SchedulerServiceSuite) TestSweepAppliesScheduledDowngrade() {
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.ScheduledDowngrade = &subscription.ScheduledDowngrade{
			NewPlanID:     "plan_basic",
			EffectiveDate: sub.CurrentPeriodEnd,
			CurrentPlanID: "plan_pro",
		}
		sub.PlanID = "plan_pro"
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.TotalSuccess)
	s.Equal("scheduled_downgrade", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal("plan_basic", sub.PlanID)
	s.Nil(sub.Metadata.ScheduledDowngrade)
}

func (s *SchedulerServiceSuite) TestSweepPrefersDowngradeOverCancel() {
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.ScheduledDowngrade = &subscription.ScheduledDowngrade{
			NewPlanID:     "plan_basic",
			EffectiveDate: sub.CurrentPeriodEnd,
			CurrentPlanID: sub.PlanID,
		}
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal("scheduled_downgrade", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal("plan_basic", sub.PlanID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.True(sub.Metadata.IsCancelAtPeriodEnd(), "pending cancel must survive for the next period boundary")
}

func (s *SchedulerServiceSuite) TestSweepAppliesCancelAtPeriodEnd() {
	cancelledAt := s.GetNow().AddDate(0, 0, -10)
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
		sub.CancelledAt = &cancelledAt
		sub.CancelReason = lo.ToPtr("downsizing")
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal("cancel_at_period_end", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
	s.Equal(cancelledAt.Unix(), sub.CancelledAt.Unix(), "request timestamp must be preserved")
	s.Equal("downsizing", *sub.CancelReason)
}

func (s *SchedulerServiceSuite) TestSweepConvertsTrialWithPaymentMethod() {
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.SubscriptionStatus = types.SubscriptionStatusTrial
		sub.TrialEndsAt = lo.ToPtr(sub.CurrentPeriodEnd)
		sub.PaymentMethodID = lo.ToPtr("pm_card_123")
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal("trial_converted", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.True(sub.CurrentPeriodEnd.After(s.GetNow()))
}

func (s *SchedulerServiceSuite) TestSweepExpiresTrialWithoutPaymentMethod() {
	seeded := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.SubscriptionStatus = types.SubscriptionStatusTrial
		sub.TrialEndsAt = lo.ToPtr(sub.CurrentPeriodEnd)
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal("trial_expired", resp.Items[0].AppliedChange)

	sub := s.reload(seeded.ID)
	s.Equal(types.SubscriptionStatusExpired, sub.SubscriptionStatus)
}

func (s *SchedulerServiceSuite) TestSweepIgnoresUndueAndNonLive() {
	s.seedSubscription(func(sub *subscription.Subscription) {
		sub.CurrentPeriodEnd = s.GetNow().AddDate(0, 0, 10)
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
	})
	s.seedSubscription(func(sub *subscription.Subscription) {
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	})

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Len(resp.Items, 0)
	s.Equal(0, resp.TotalSuccess)
	s.Equal(0, resp.TotalFailed)
}

func (s *SchedulerServiceSuite) TestSweepIsIdempotent() {
	s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
	})
	s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.ScheduledDowngrade = &subscription.ScheduledDowngrade{
			NewPlanID:     "plan_basic",
			EffectiveDate: sub.CurrentPeriodEnd,
			CurrentPlanID: sub.PlanID,
		}
	})

	first, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal(2, first.TotalSuccess)

	second, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Len(second.Items, 0, "a second sweep must find nothing left to do")
}

func (s *SchedulerServiceSuite) TestSweepIsolatesPerItemFailures() {
	failing := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
	})
	healthy := s.seedSubscription(func(sub *subscription.Subscription) {
		sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
	})

	store := s.GetStores().SubscriptionRepo.(*testutil.InMemorySubscriptionStore)
	store.FailUpdatesFor(failing.ID, errors.New("write timeout"))

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err, "one failing item must not abort the sweep")
	s.Equal(1, resp.TotalSuccess)
	s.Equal(1, resp.TotalFailed)

	for _, item := range resp.Items {
		if item.SubscriptionID == failing.ID {
			s.False(item.Success)
			s.NotEmpty(item.Error)
		} else {
			s.True(item.Success)
		}
	}

	sub := s.reload(healthy.ID)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
}

func (s *SchedulerServiceSuite) TestSweepPagesThroughAllDue() {
	original := s.GetConfig().Billing.SweepBatchSize
	s.GetConfig().Billing.SweepBatchSize = 2
	defer func() { s.GetConfig().Billing.SweepBatchSize = original }()

	for i := 0; i < 5; i++ {
		s.seedSubscription(func(sub *subscription.Subscription) {
			sub.Metadata.CancelAtPeriodEnd = lo.ToPtr(true)
		})
	}

	resp, err := s.service.ProcessScheduledChanges(s.GetContext())
	s.NoError(err)
	s.Equal(5, resp.TotalSuccess)
	s.Len(resp.Items, 5)
}
