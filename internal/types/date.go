package types

import "time"

// NextBillingDate computes the end of a billing period starting at start.
// Yearly cycles advance by one calendar year, everything else (including the
// zero value) by one calendar month. Month-end dates clamp to the last day of
// the target month (Jan 31 -> Feb 28/29), matching standard calendar rollover.
func NextBillingDate(start time.Time, cycle BillingCycle) time.Time {
	switch cycle {
	case BillingCycleYearly:
		return AddClampedDate(start, 1, 0, 0)
	default:
		return AddClampedDate(start, 0, 1, 0)
	}
}

// AddClampedDate adds the given years/months/days to t like time.AddDate,
// except that a day-of-month overflow clamps to the last day of the target
// month instead of spilling into the next one.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// Normalize month overflow in either direction, e.g. adding 2 months
	// to November lands on January of the next year.
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	if last := daysInMonth(newY, newM); d > last {
		d = last
	}

	result := time.Date(newY, newM, d, h, min, sec, t.Nanosecond(), t.Location())
	if days != 0 {
		result = result.AddDate(0, 0, days)
	}
	return result
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
