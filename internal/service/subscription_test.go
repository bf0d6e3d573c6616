package service

import (
	"errors"
	"testing"
	"time"

	"github.com/relaycrm/billing/internal/api/dto"
	"github.com/relaycrm/billing/internal/domain/client"
	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/domain/usage"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/testutil"
	"github.com/relaycrm/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService

	basicPlan *plan.Plan
	proPlan   *plan.Plan
	trialPlan *plan.Plan
	testData  struct {
		client *client.Client
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(s.params())
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) params() ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		stores.SubscriptionRepo,
		stores.PlanRepo,
		stores.InvoiceRepo,
		stores.ClientRepo,
		stores.UsageRepo,
		stores.AuditLogger,
	)
}

func (s *SubscriptionServiceSuite) setupTestData() {
	planStore := s.GetStores().PlanRepo.(*testutil.InMemoryPlanStore)

	s.basicPlan = &plan.Plan{
		ID:           "plan_basic",
		Code:         "basic",
		Name:         "Basic",
		PriceMonthly: decimal.NewFromInt(900),
		PriceYearly:  decimal.NewFromInt(9000),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	s.proPlan = &plan.Plan{
		ID:           "plan_pro",
		Code:         "pro",
		Name:         "Pro",
		PriceMonthly: decimal.NewFromInt(1800),
		PriceYearly:  decimal.NewFromInt(18000),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	s.trialPlan = &plan.Plan{
		ID:           "plan_trial",
		Code:         "growth",
		Name:         "Growth",
		PriceMonthly: decimal.NewFromInt(1200),
		PriceYearly:  decimal.NewFromInt(12000),
		TrialDays:    14,
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(planStore.Add(s.GetContext(), s.basicPlan))
	s.NoError(planStore.Add(s.GetContext(), s.proPlan))
	s.NoError(planStore.Add(s.GetContext(), s.trialPlan))

	s.testData.client = &client.Client{
		ID:           "client_acme",
		Name:         "Acme Corp",
		Email:        "billing@acme.test",
		ClientStatus: types.ClientStatusActive,
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	clientStore := s.GetStores().ClientRepo.(*testutil.InMemoryClientStore)
	s.NoError(clientStore.Add(s.GetContext(), s.testData.client))
}

func (s *SubscriptionServiceSuite) createSubscription(planID string, paymentMethod *string) *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID:        s.testData.client.ID,
		PlanID:          planID,
		BillingCycle:    types.BillingCycleMonthly,
		PaymentMethodID: paymentMethod,
	})
	s.NoError(err)
	s.NotNil(resp)
	return resp
}

func (s *SubscriptionServiceSuite) reloadSubscription(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.NoError(err)
	return sub
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithoutTrial() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Nil(resp.TrialEndsAt)
	s.Equal(s.basicPlan.ID, resp.PlanID)
	s.Equal(1, resp.Version)
	s.Equal(types.NextBillingDate(resp.CurrentPeriodStart, types.BillingCycleMonthly), resp.CurrentPeriodEnd)
	s.NotNil(resp.Plan)
	s.Equal(s.basicPlan.Code, resp.Plan.Code)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithTrialPlan() {
	resp := s.createSubscription(s.trialPlan.ID, nil)

	s.Equal(types.SubscriptionStatusTrial, resp.SubscriptionStatus)
	s.NotNil(resp.TrialEndsAt)
	s.Equal(*resp.TrialEndsAt, resp.CurrentPeriodEnd)
	s.WithinDuration(s.GetNow().AddDate(0, 0, s.trialPlan.TrialDays), *resp.TrialEndsAt, time.Minute)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionYearly() {
	resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID:     s.testData.client.ID,
		PlanID:       s.basicPlan.ID,
		BillingCycle: types.BillingCycleYearly,
	})
	s.NoError(err)
	s.Equal(types.BillingCycleYearly, resp.BillingCycle)
	s.Equal(types.NextBillingDate(resp.CurrentPeriodStart, types.BillingCycleYearly), resp.CurrentPeriodEnd)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionDefaultsToMonthly() {
	resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID: s.testData.client.ID,
		PlanID:   s.basicPlan.ID,
	})
	s.NoError(err)
	s.Equal(types.BillingCycleMonthly, resp.BillingCycle)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionRejectsSecondLive() {
	s.createSubscription(s.basicPlan.ID, nil)

	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID: s.testData.client.ID,
		PlanID:   s.proPlan.ID,
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionAllowedAfterCancel() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	err := s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Reason:    "switching providers",
		Immediate: true,
	})
	s.NoError(err)

	s.createSubscription(s.proPlan.ID, nil)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionUnknownPlan() {
	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID: s.testData.client.ID,
		PlanID:   "plan_missing",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionArchivedPlan() {
	planStore := s.GetStores().PlanRepo.(*testutil.InMemoryPlanStore)
	archived := &plan.Plan{
		ID:           "plan_legacy",
		Code:         "legacy",
		Name:         "Legacy",
		PriceMonthly: decimal.NewFromInt(500),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	archived.Status = types.StatusArchived
	s.NoError(planStore.Add(s.GetContext(), archived))

	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		ClientID: s.testData.client.ID,
		PlanID:   archived.ID,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionValidation() {
	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		PlanID: s.basicPlan.ID,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestUpgradeImmediateProratesAndInvoices() {
	// Anchor the period so 15 days remain at upgrade time: at 900 vs 1800 a
	// month this yields a 450.00 credit against a 900.00 charge.
	resp := s.createSubscription(s.basicPlan.ID, nil)
	sub := s.reloadSubscription(resp.ID)
	sub.CurrentPeriodStart = s.GetNow().AddDate(0, 0, -15)
	sub.CurrentPeriodEnd = s.GetNow().AddDate(0, 0, 15)
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	upgraded, err := s.service.UpgradePlan(s.GetContext(), sub.ID, dto.UpgradePlanRequest{
		NewPlanID: s.proPlan.ID,
		Immediate: true,
	})
	s.NoError(err)
	s.Equal(s.proPlan.ID, upgraded.PlanID)
	s.Equal(types.SubscriptionStatusActive, upgraded.SubscriptionStatus)
	s.NotNil(upgraded.ProrationDate)

	s.NotNil(upgraded.Metadata.LastUpgrade)
	s.Equal(s.basicPlan.ID, upgraded.Metadata.LastUpgrade.FromPlanID)
	s.Equal(s.proPlan.ID, upgraded.Metadata.LastUpgrade.ToPlanID)
	s.True(upgraded.Metadata.LastUpgrade.Proration.Equal(decimal.RequireFromString("450")),
		"expected proration of 450.00, got %s", upgraded.Metadata.LastUpgrade.Proration)

	invoices, err := s.GetStores().InvoiceRepo.ListBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(invoices, 1)
	s.True(invoices[0].TotalAmount.Equal(decimal.RequireFromString("450")))
	s.Equal(types.InvoiceStatusPending, invoices[0].InvoiceStatus)
	s.Len(invoices[0].LineItems, 2)
}

func (s *SubscriptionServiceSuite) TestUpgradeImmediateToCheaperPlanSkipsInvoice() {
	resp := s.createSubscription(s.proPlan.ID, nil)
	sub := s.reloadSubscription(resp.ID)
	sub.CurrentPeriodStart = s.GetNow().AddDate(0, 0, -15)
	sub.CurrentPeriodEnd = s.GetNow().AddDate(0, 0, 15)
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	upgraded, err := s.service.UpgradePlan(s.GetContext(), sub.ID, dto.UpgradePlanRequest{
		NewPlanID: s.basicPlan.ID,
		Immediate: true,
	})
	s.NoError(err)
	s.Equal(s.basicPlan.ID, upgraded.PlanID)
	s.True(upgraded.Metadata.LastUpgrade.Proration.IsNegative())

	invoices, err := s.GetStores().InvoiceRepo.ListBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(invoices, 0)
}

func (s *SubscriptionServiceSuite) TestUpgradeDeferredSchedulesChange() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	upgraded, err := s.service.UpgradePlan(s.GetContext(), resp.ID, dto.UpgradePlanRequest{
		NewPlanID: s.proPlan.ID,
	})
	s.NoError(err)
	s.Equal(s.basicPlan.ID, upgraded.PlanID, "plan must not change before period end")
	s.NotNil(upgraded.Metadata.ScheduledUpgrade)
	s.Equal(s.proPlan.ID, upgraded.Metadata.ScheduledUpgrade.NewPlanID)
	s.Equal(resp.CurrentPeriodEnd, upgraded.Metadata.ScheduledUpgrade.EffectiveDate)

	invoices, err := s.GetStores().InvoiceRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(invoices, 0)
}

func (s *SubscriptionServiceSuite) TestDowngradeAlwaysDeferred() {
	resp := s.createSubscription(s.proPlan.ID, nil)

	downgraded, err := s.service.DowngradePlan(s.GetContext(), resp.ID, dto.DowngradePlanRequest{
		NewPlanID: s.basicPlan.ID,
	})
	s.NoError(err)
	s.Equal(s.proPlan.ID, downgraded.PlanID)
	s.NotNil(downgraded.Metadata.ScheduledDowngrade)
	s.Equal(s.basicPlan.ID, downgraded.Metadata.ScheduledDowngrade.NewPlanID)
	s.Equal(s.proPlan.ID, downgraded.Metadata.ScheduledDowngrade.CurrentPlanID)
	s.Equal(resp.CurrentPeriodEnd, downgraded.Metadata.ScheduledDowngrade.EffectiveDate)
}

func (s *SubscriptionServiceSuite) TestScheduledChangesAccumulate() {
	resp := s.createSubscription(s.proPlan.ID, nil)

	_, err := s.service.DowngradePlan(s.GetContext(), resp.ID, dto.DowngradePlanRequest{
		NewPlanID: s.basicPlan.ID,
	})
	s.NoError(err)

	err = s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Reason: "budget cuts",
	})
	s.NoError(err)

	sub := s.reloadSubscription(resp.ID)
	s.NotNil(sub.Metadata.ScheduledDowngrade, "cancel must not clobber the pending downgrade")
	s.True(sub.Metadata.IsCancelAtPeriodEnd())
}

func (s *SubscriptionServiceSuite) TestCancelImmediate() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	err := s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Reason:    "too expensive",
		Immediate: true,
	})
	s.NoError(err)

	sub := s.reloadSubscription(resp.ID)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
	s.NotNil(sub.CancelledAt)
	s.Equal("too expensive", *sub.CancelReason)
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEndStaysLive() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	err := s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Reason: "seasonal business",
	})
	s.NoError(err)

	sub := s.reloadSubscription(resp.ID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.NotNil(sub.CancelledAt, "request time must be recorded even for deferred cancellation")
	s.Equal("seasonal business", *sub.CancelReason)
	s.True(sub.Metadata.IsCancelAtPeriodEnd())
}

func (s *SubscriptionServiceSuite) TestReactivateCancelledSubscription() {
	resp := s.createSubscription(s.basicPlan.ID, nil)
	err := s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Reason:    "pause",
		Immediate: true,
	})
	s.NoError(err)

	reactivated, err := s.service.ReactivateSubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, reactivated.SubscriptionStatus)
	s.Nil(reactivated.CancelledAt)
	s.Nil(reactivated.CancelReason)
	s.Nil(reactivated.Metadata.CancelAtPeriodEnd)
	s.NotNil(reactivated.Metadata.ReactivatedAt)
	s.True(reactivated.CurrentPeriodEnd.After(s.GetNow()))
}

func (s *SubscriptionServiceSuite) TestReactivateRejectsLiveSubscription() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	_, err := s.service.ReactivateSubscription(s.GetContext(), resp.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestSuspendCascadesToClient() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	err := s.service.SuspendSubscription(s.GetContext(), resp.ID, dto.SuspendSubscriptionRequest{
		Reason: "payment failure",
	})
	s.NoError(err)

	sub := s.reloadSubscription(resp.ID)
	s.Equal(types.SubscriptionStatusSuspended, sub.SubscriptionStatus)
	s.NotNil(sub.Metadata.SuspendedAt)
	s.Equal("payment failure", *sub.Metadata.SuspendReason)

	acct, err := s.GetStores().ClientRepo.Get(s.GetContext(), s.testData.client.ID)
	s.NoError(err)
	s.Equal(types.ClientStatusSuspended, acct.ClientStatus)
}

func (s *SubscriptionServiceSuite) TestSuspendSucceedsWhenCascadeFails() {
	clientStore := s.GetStores().ClientRepo.(*testutil.InMemoryClientStore)
	clientStore.SetStatusErr = errors.New("client store unavailable")

	resp := s.createSubscription(s.basicPlan.ID, nil)

	err := s.service.SuspendSubscription(s.GetContext(), resp.ID, dto.SuspendSubscriptionRequest{
		Reason: "payment failure",
	})
	s.NoError(err)

	sub := s.reloadSubscription(resp.ID)
	s.Equal(types.SubscriptionStatusSuspended, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestGetSubscriptionReturnsLatest() {
	first := s.createSubscription(s.basicPlan.ID, nil)
	err := s.service.CancelSubscription(s.GetContext(), first.ID, dto.CancelSubscriptionRequest{
		Immediate: true,
	})
	s.NoError(err)

	// Force distinct creation timestamps so latest-first ordering is stable.
	stale := s.reloadSubscription(first.ID)
	stale.CreatedAt = stale.CreatedAt.Add(-time.Hour)
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), stale))

	second := s.createSubscription(s.proPlan.ID, nil)

	resp, err := s.service.GetSubscription(s.GetContext(), s.testData.client.ID)
	s.NoError(err)
	s.Equal(second.ID, resp.ID)
	s.NotNil(resp.Plan)
	s.Equal(s.proPlan.Code, resp.Plan.Code)
}

func (s *SubscriptionServiceSuite) TestGetSubscriptionUnknownClient() {
	_, err := s.service.GetSubscription(s.GetContext(), "client_ghost")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestGetUsageFiltersToCurrentPeriod() {
	resp := s.createSubscription(s.basicPlan.ID, nil)
	usageStore := s.GetStores().UsageRepo.(*testutil.InMemoryUsageStore)

	current := &usage.Usage{
		ID:             "usage_current",
		SubscriptionID: resp.ID,
		FeatureCode:    "api_calls",
		Quantity:       decimal.NewFromInt(120),
		PeriodStart:    s.GetNow().AddDate(0, 0, -1),
		PeriodEnd:      s.GetNow().AddDate(0, 0, 29),
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	past := &usage.Usage{
		ID:             "usage_past",
		SubscriptionID: resp.ID,
		FeatureCode:    "api_calls",
		Quantity:       decimal.NewFromInt(999),
		PeriodStart:    s.GetNow().AddDate(0, -2, 0),
		PeriodEnd:      s.GetNow().AddDate(0, -1, 0),
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(usageStore.Add(s.GetContext(), current))
	s.NoError(usageStore.Add(s.GetContext(), past))

	result, err := s.service.GetUsage(s.GetContext(), resp.ID, "api_calls")
	s.NoError(err)
	s.Len(result.Items, 1)
	s.Equal("usage_current", result.Items[0].ID)
	s.True(result.TotalQuantity.Equal(decimal.NewFromInt(120)))
}

func (s *SubscriptionServiceSuite) TestAuditTrailRecordsTransitions() {
	resp := s.createSubscription(s.basicPlan.ID, nil)
	err := s.service.CancelSubscription(s.GetContext(), resp.ID, dto.CancelSubscriptionRequest{
		Immediate: true,
	})
	s.NoError(err)

	created := s.GetAuditLogger().EventsByAction("subscription.created")
	s.Len(created, 1)
	s.Equal(resp.ID, created[0].EntityID)
	s.Equal(types.DefaultUserID, created[0].Actor)

	cancelled := s.GetAuditLogger().EventsByAction("subscription.cancelled")
	s.Len(cancelled, 1)
}

func (s *SubscriptionServiceSuite) TestAuditFailureDoesNotFailOperation() {
	s.GetAuditLogger().LogErr = errors.New("audit sink down")

	resp := s.createSubscription(s.basicPlan.ID, nil)
	s.NotEmpty(resp.ID)
}

func (s *SubscriptionServiceSuite) TestConcurrentUpdateConflict() {
	resp := s.createSubscription(s.basicPlan.ID, nil)

	first := s.reloadSubscription(resp.ID)
	second := s.reloadSubscription(resp.ID)

	first.CancelReason = lo.ToPtr("first writer")
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), first))

	second.CancelReason = lo.ToPtr("second writer")
	err := s.GetStores().SubscriptionRepo.Update(s.GetContext(), second)
	s.Error(err)
	s.True(ierr.IsVersionConflict(err))
}
