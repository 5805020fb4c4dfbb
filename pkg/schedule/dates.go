package schedule

import (
	"fmt"
	"time"

	"github.com/iwvelando/loan-engine/pkg/daycount"
)

// Frequency is the unit of the repayment interval.
type Frequency string

const (
	Days   Frequency = "DAYS"
	Weeks  Frequency = "WEEKS"
	Months Frequency = "MONTHS"
)

// ParseFrequency validates a configured repayment frequency unit.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Days, Weeks, Months:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown repayment frequency %q", s)
}

// DueDates generates the raw due date sequence for n repayments: each date is
// start + k*every units for k=1..n, before any holiday adjustment. Monthly
// steps are anchored on the start's day-of-month and clamped to month end, so
// a schedule anchored on the 31st falls due on Feb 28 (or 29) rather than
// spilling into March.
func DueDates(start time.Time, n, every int, unit Frequency) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("repayment count must be positive, got %d", n)
	}
	if every <= 0 {
		return nil, fmt.Errorf("repayment interval must be positive, got %d", every)
	}
	dates := make([]time.Time, n)
	for k := 1; k <= n; k++ {
		switch unit {
		case Days:
			dates[k-1] = start.AddDate(0, 0, k*every)
		case Weeks:
			dates[k-1] = start.AddDate(0, 0, 7*k*every)
		case Months:
			dates[k-1] = addMonthsClamped(start, k*every)
		default:
			return nil, fmt.Errorf("unknown repayment frequency %q", unit)
		}
	}
	return dates, nil
}

// addMonthsClamped adds months keeping the anchor day-of-month, clamping to
// the last day of the target month. time.AddDate normalizes overflow
// (Jan 31 + 1 month = Mar 3) which is wrong for due dates.
func addMonthsClamped(t time.Time, months int) time.Time {
	anchor := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := t.Day()
	if max := daycount.DaysInMonth(anchor); day > max {
		day = max
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
}
