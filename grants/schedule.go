/*
schedule.go - Grant payment date arithmetic

PURPOSE:
  Pure calendar calculations for when each grant type pays out.
  No stored state; everything derives from the grant type's pay day
  and a reference date.

ROLL-FORWARD RULE:
  The next payment date is the pay day in the reference month. If that
  day is strictly before the reference date, it rolls forward one
  month. A reference date ON the pay day returns that same day.

  Pay days are 1-10, so they exist in every month; no end-of-month
  clamping is needed.

SEE ALSO:
  - types.go: GrantType.PayDay
  - disburse.go: Uses IsDue to drive payments
*/
package grants

import "time"

// =============================================================================
// SCHEDULE CALCULATION
// =============================================================================

// NextPaymentDate returns the next pay date for a grant type on or
// after the reference date.
func NextPaymentDate(g GrantType, ref time.Time) time.Time {
	day := startOfDay(ref)
	candidate := time.Date(day.Year(), day.Month(), g.PayDay(), 0, 0, 0, 0, day.Location())
	if candidate.Before(day) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}

// PaymentSchedule returns the next n pay dates from the reference date.
func PaymentSchedule(g GrantType, ref time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	dates := make([]time.Time, 0, n)
	next := NextPaymentDate(g, ref)
	for i := 0; i < n; i++ {
		dates = append(dates, next)
		next = next.AddDate(0, 1, 0)
	}
	return dates
}

// DaysUntil returns whole days from the reference date to the next
// pay date. Zero means the grant pays today.
func DaysUntil(g GrantType, ref time.Time) int {
	next := NextPaymentDate(g, ref)
	return int(next.Sub(startOfDay(ref)).Hours() / 24)
}

// IsDue reports whether a scheduled date has arrived.
func IsDue(scheduled, ref time.Time) bool {
	return !startOfDay(scheduled).After(startOfDay(ref))
}

// IsOverdue reports whether a scheduled date is strictly in the past.
func IsOverdue(scheduled, ref time.Time) bool {
	return startOfDay(scheduled).Before(startOfDay(ref))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
