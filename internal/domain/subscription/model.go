package subscription

import (
	"time"

	"github.com/relaycrm/billing/internal/types"
)

type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// ClientID is the identifier of the owning CRM client (tenant organization)
	ClientID string `db:"client_id" json:"client_id"`

	// PlanID is the identifier of the currently assigned plan
	PlanID string `db:"plan_id" json:"plan_id"`

	// SubscriptionStatus is the business status of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// BillingCycle governs the length of each billing period
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	// CurrentPeriodStart is the start of the active billing window
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the active billing window. The scheduled
	// change sweep picks up live subscriptions whose period end has elapsed.
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// TrialEndsAt is set only when the plan grants a trial
	TrialEndsAt *time.Time `db:"trial_ends_at" json:"trial_ends_at"`

	// CancelledAt records when cancellation was requested, not when it takes
	// effect. For a period-end cancellation the status stays live until the
	// sweep flips it.
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at"`

	// CancelReason is the caller-supplied reason recorded at request time
	CancelReason *string `db:"cancel_reason" json:"cancel_reason"`

	// ProrationDate is the timestamp of the last immediate plan change
	ProrationDate *time.Time `db:"proration_date" json:"proration_date"`

	// PaymentMethodID gates trial-to-active conversion; a trial without one
	// expires instead of converting.
	PaymentMethodID *string `db:"payment_method_id" json:"payment_method_id"`

	// Metadata holds the pending-change sub-records. Updates must go through
	// ChangeMetadata.Merge so that setting one sub-record never clobbers the
	// others.
	Metadata ChangeMetadata `db:"metadata" json:"metadata"`

	// Version guards concurrent read-modify-write cycles. Repository updates
	// fail with a version conflict when the loaded version is stale.
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// IsLive reports whether this subscription counts against the
// one-live-subscription-per-client constraint.
func (s *Subscription) IsLive() bool {
	return s.SubscriptionStatus.IsLive()
}
