package usage

import (
	"time"

	"github.com/relaycrm/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Usage is a metered feature usage record for a subscription, owned by the
// usage store and consumed read-only by the core.
type Usage struct {
	ID             string          `db:"id" json:"id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	FeatureCode    string          `db:"feature_code" json:"feature_code"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	PeriodStart    time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time       `db:"period_end" json:"period_end"`
	types.BaseModel
}

// OverlapsAt reports whether the record's usage period covers the given instant
func (u *Usage) OverlapsAt(at time.Time) bool {
	return !u.PeriodStart.After(at) && !u.PeriodEnd.Before(at)
}
