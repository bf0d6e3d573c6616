package dto

import (
	"time"

	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/types"
	"github.com/relaycrm/billing/internal/validator"
)

// CreateSubscriptionRequest creates a subscription for a client. BillingCycle
// defaults to monthly when omitted.
type CreateSubscriptionRequest struct {
	ClientID        string             `json:"client_id" validate:"required"`
	PlanID          string             `json:"plan_id" validate:"required"`
	BillingCycle    types.BillingCycle `json:"billing_cycle"`
	PaymentMethodID *string            `json:"payment_method_id,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.BillingCycle == "" {
		r.BillingCycle = types.BillingCycleMonthly
	}
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.BillingCycle.Validate()
}

// UpgradePlanRequest switches a subscription to a higher plan. Immediate
// upgrades prorate the remainder of the current period; deferred upgrades are
// recorded and applied by the sweep at period end.
type UpgradePlanRequest struct {
	NewPlanID string `json:"new_plan_id" validate:"required"`
	Immediate bool   `json:"immediate"`
}

func (r *UpgradePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// DowngradePlanRequest schedules a downgrade for period end. Downgrades never
// take effect immediately.
type DowngradePlanRequest struct {
	NewPlanID string `json:"new_plan_id" validate:"required"`
}

func (r *DowngradePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CancelSubscriptionRequest cancels a subscription now or at period end.
type CancelSubscriptionRequest struct {
	Reason    string `json:"reason"`
	Immediate bool   `json:"immediate"`
}

func (r *CancelSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SuspendSubscriptionRequest suspends a subscription and cascades the
// suspension to the owning client account.
type SuspendSubscriptionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (r *SuspendSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SubscriptionResponse is the canonical subscription payload with the
// assigned plan populated.
type SubscriptionResponse struct {
	*subscription.Subscription
	Plan *plan.Plan `json:"plan,omitempty"`
}

// ScheduledChangeItem reports the outcome of processing one due subscription
// during a sweep.
type ScheduledChangeItem struct {
	SubscriptionID string    `json:"subscription_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	AppliedChange  string    `json:"applied_change"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}

// ScheduledChangesResponse summarizes a sweep run for the cron caller.
type ScheduledChangesResponse struct {
	Items        []*ScheduledChangeItem `json:"items"`
	TotalSuccess int                    `json:"total_success"`
	TotalFailed  int                    `json:"total_failed"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  time.Time              `json:"completed_at"`
}
