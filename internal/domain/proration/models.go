package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Params holds the input for a mid-period plan change calculation.
type Params struct {
	SubscriptionID     string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	// ProrationDate is the effective instant of the change, normally now.
	ProrationDate time.Time

	OldPlanID           string
	NewPlanID           string
	OldPlanPriceMonthly decimal.Decimal
	NewPlanPriceMonthly decimal.Decimal
}

// Result holds the output of a proration calculation. Amounts are rounded to
// two decimal places; RemainingDays is rounded to the nearest whole day for
// reporting. A non-positive NetAmount means no invoice is owed.
type Result struct {
	// OldPlanCredit is the unused portion of the old plan for the remainder
	// of the period.
	OldPlanCredit decimal.Decimal `json:"old_plan_credit"`
	// NewPlanCost is the cost of the new plan for the remainder of the period.
	NewPlanCost decimal.Decimal `json:"new_plan_cost"`
	// NetAmount is NewPlanCost minus OldPlanCredit.
	NetAmount     decimal.Decimal `json:"net_amount"`
	RemainingDays int             `json:"remaining_days"`
	TotalDays     int             `json:"total_days"`
	ProrationDate time.Time       `json:"proration_date"`
}
