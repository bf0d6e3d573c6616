package types

import (
	"time"

	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the business status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// SubscriptionStatusLive lists the statuses that count as a live subscription
// for the one-live-subscription-per-client invariant.
var SubscriptionStatusLive = []SubscriptionStatus{
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsLive reports whether the subscription counts against the
// one-live-subscription-per-client constraint.
func (s SubscriptionStatus) IsLive() bool {
	return lo.Contains(SubscriptionStatusLive, s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrial,
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
		SubscriptionStatusSuspended,
		SubscriptionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingCycle is the recurrence unit governing billing period length
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) String() string {
	return string(c)
}

func (c BillingCycle) Validate() error {
	allowed := []BillingCycle{
		BillingCycleMonthly,
		BillingCycleYearly,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Billing cycle must be monthly or yearly").
			WithReportableDetails(map[string]any{
				"billing_cycle":  c,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionFilter represents filters for subscription queries
type SubscriptionFilter struct {
	*QueryFilter

	// ClientID filters by owning client
	ClientID string `json:"client_id,omitempty" form:"client_id"`
	// PlanID filters by plan
	PlanID string `json:"plan_id,omitempty" form:"plan_id"`
	// SubscriptionStatus filters by business status
	SubscriptionStatus []SubscriptionStatus `json:"subscription_status,omitempty" form:"subscription_status"`
	// PeriodEndBefore filters subscriptions whose current period has elapsed
	// as of the given instant. Used by the scheduled change sweep.
	PeriodEndBefore *time.Time `json:"period_end_before,omitempty" form:"period_end_before"`
}

// NewSubscriptionFilter creates a new SubscriptionFilter with default pagination
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitSubscriptionFilter creates a new SubscriptionFilter with no pagination limits
func NewNoLimitSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f SubscriptionFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	for _, status := range f.SubscriptionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}

	return nil
}
