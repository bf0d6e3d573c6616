package proration

import (
	"context"
	"time"

	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/shopspring/decimal"
)

// monthlyDayBasis is the fixed day count used to derive daily rates from
// monthly prices. Real month lengths are deliberately not used: a uniform
// 30-day basis keeps daily rates stable across the calendar.
const monthlyDayBasis = 30

// Calculator computes the credit/cost split for a mid-period plan change.
type Calculator interface {
	Calculate(ctx context.Context, params Params) (*Result, error)
}

// NewCalculator returns the default day-based calculator.
func NewCalculator() Calculator {
	return &dayBasedCalculator{}
}

type dayBasedCalculator struct{}

// Calculate never fails on degenerate time inputs. A proration date past the
// period end yields a zero or negative remaining-day count and therefore a
// non-positive net amount; callers gate invoice emission on NetAmount > 0.
func (c *dayBasedCalculator) Calculate(_ context.Context, params Params) (*Result, error) {
	if params.CurrentPeriodEnd.Before(params.CurrentPeriodStart) {
		return nil, ierr.NewError("invalid billing period").
			WithHintf("period end %v precedes period start %v",
				params.CurrentPeriodEnd, params.CurrentPeriodStart).
			Mark(ierr.ErrValidation)
	}

	totalDays := daysBetween(params.CurrentPeriodStart, params.CurrentPeriodEnd)
	remainingDays := daysBetween(params.ProrationDate, params.CurrentPeriodEnd)

	basis := decimal.NewFromInt(monthlyDayBasis)
	oldDailyRate := params.OldPlanPriceMonthly.Div(basis)
	newDailyRate := params.NewPlanPriceMonthly.Div(basis)

	oldPlanCredit := oldDailyRate.Mul(remainingDays).Round(2)
	newPlanCost := newDailyRate.Mul(remainingDays).Round(2)

	return &Result{
		OldPlanCredit: oldPlanCredit,
		NewPlanCost:   newPlanCost,
		NetAmount:     newPlanCost.Sub(oldPlanCredit).Round(2),
		RemainingDays: int(remainingDays.Round(0).IntPart()),
		TotalDays:     int(totalDays.Round(0).IntPart()),
		ProrationDate: params.ProrationDate,
	}, nil
}

// daysBetween returns the fractional day count from a to b, negative when b
// precedes a.
func daysBetween(a, b time.Time) decimal.Decimal {
	return decimal.NewFromFloat(b.Sub(a).Hours() / 24)
}
