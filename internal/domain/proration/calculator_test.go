package proration

import (
	"context"
	"testing"
	"time"

	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calcParams(start, end, at time.Time, oldPrice, newPrice int64) Params {
	return Params{
		SubscriptionID:      "subs_test",
		CurrentPeriodStart:  start,
		CurrentPeriodEnd:    end,
		ProrationDate:       at,
		OldPlanID:           "plan_old",
		NewPlanID:           "plan_new",
		OldPlanPriceMonthly: decimal.NewFromInt(oldPrice),
		NewPlanPriceMonthly: decimal.NewFromInt(newPrice),
	}
}

func TestCalculateMidPeriodUpgrade(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	at := start.AddDate(0, 0, 15)

	result, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, at, 900, 1800))
	require.NoError(t, err)

	assert.True(t, result.OldPlanCredit.Equal(decimal.RequireFromString("450")), "credit %s", result.OldPlanCredit)
	assert.True(t, result.NewPlanCost.Equal(decimal.RequireFromString("900")), "cost %s", result.NewPlanCost)
	assert.True(t, result.NetAmount.Equal(decimal.RequireFromString("450")), "net %s", result.NetAmount)
	assert.Equal(t, 15, result.RemainingDays)
	assert.Equal(t, 30, result.TotalDays)
	assert.Equal(t, at, result.ProrationDate)
}

func TestCalculateRoundsToCents(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	at := start.AddDate(0, 0, 23)

	// 7 days at 1000/30 a day = 233.333... -> 233.33
	result, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, at, 1000, 2000))
	require.NoError(t, err)

	assert.True(t, result.OldPlanCredit.Equal(decimal.RequireFromString("233.33")), "credit %s", result.OldPlanCredit)
	assert.True(t, result.NewPlanCost.Equal(decimal.RequireFromString("466.67")), "cost %s", result.NewPlanCost)
	assert.True(t, result.NetAmount.Equal(decimal.RequireFromString("233.34")), "net %s", result.NetAmount)
}

func TestCalculateDowngradeYieldsNegativeNet(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	at := start.AddDate(0, 0, 15)

	result, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, at, 1800, 900))
	require.NoError(t, err)
	assert.True(t, result.NetAmount.IsNegative())
}

func TestCalculateProrationDatePastPeriodEnd(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	at := end.AddDate(0, 0, 5)

	// Past the period end there is nothing left to credit or charge; the
	// result is negative, not an error.
	result, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, at, 900, 1800))
	require.NoError(t, err)
	assert.Equal(t, -5, result.RemainingDays)
	assert.True(t, result.NetAmount.IsNegative())
}

func TestCalculateUsesFixedMonthlyBasis(t *testing.T) {
	// A 31-day February-spanning period still derives daily rates from a
	// 30-day month.
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	at := end.AddDate(0, 0, -10)

	result, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, at, 300, 600))
	require.NoError(t, err)
	assert.True(t, result.OldPlanCredit.Equal(decimal.RequireFromString("100")), "credit %s", result.OldPlanCredit)
	assert.Equal(t, 31, result.TotalDays)
}

func TestCalculateRejectsInvertedPeriod(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := NewCalculator().Calculate(context.Background(), calcParams(start, end, start, 900, 1800))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
