package plan

import (
	"github.com/relaycrm/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Plan is a pricing plan from the catalog. The billing core consumes plans
// read-only; catalog administration lives elsewhere in the product.
type Plan struct {
	ID           string          `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Name         string          `db:"name" json:"name"`
	PriceMonthly decimal.Decimal `db:"price_monthly" json:"price_monthly"`
	PriceYearly  decimal.Decimal `db:"price_yearly" json:"price_yearly"`
	TrialDays    int             `db:"trial_days" json:"trial_days"`
	types.BaseModel
}

// IsActive reports whether the plan can be assigned to new subscriptions
func (p *Plan) IsActive() bool {
	return p.Status == types.StatusPublished
}

// HasTrial reports whether the plan grants a trial period
func (p *Plan) HasTrial() bool {
	return p.TrialDays > 0
}

// PriceForCycle returns the recurring price for the given billing cycle
func (p *Plan) PriceForCycle(cycle types.BillingCycle) decimal.Decimal {
	if cycle == types.BillingCycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}
