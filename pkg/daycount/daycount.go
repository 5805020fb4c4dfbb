// Package daycount implements the day-count conventions used when prorating
// interest: actual calendar counting and the fixed 30/360-family bases.
package daycount

import (
	"fmt"
	"time"
)

// YearBasis selects the days-in-year denominator for interest proration.
type YearBasis string

// MonthBasis selects how days between two dates are counted.
type MonthBasis string

const (
	// ActualYear uses 365 or 366 depending on the calendar year.
	ActualYear YearBasis = "ACTUAL"
	// Fixed360 uses a 360-day year.
	Fixed360 YearBasis = "360"
	// Fixed364 uses a 364-day year.
	Fixed364 YearBasis = "364"
	// Fixed365 uses a 365-day year regardless of leap years.
	Fixed365 YearBasis = "365"
)

const (
	// ActualMonth counts actual calendar days.
	ActualMonth MonthBasis = "ACTUAL"
	// Fixed30 counts months as 30 days (30/360 style, day-of-month capped
	// at 30).
	Fixed30 MonthBasis = "30"
)

// ParseYearBasis validates a configured days-in-year convention.
func ParseYearBasis(s string) (YearBasis, error) {
	switch YearBasis(s) {
	case ActualYear, Fixed360, Fixed364, Fixed365:
		return YearBasis(s), nil
	}
	return "", fmt.Errorf("unknown days-in-year convention %q", s)
}

// ParseMonthBasis validates a configured days-in-month convention.
func ParseMonthBasis(s string) (MonthBasis, error) {
	switch MonthBasis(s) {
	case ActualMonth, Fixed30:
		return MonthBasis(s), nil
	}
	return "", fmt.Errorf("unknown days-in-month convention %q", s)
}

// IsLeapYear reports whether the given year is a leap year.
func IsLeapYear(year int) bool {
	if year%4 != 0 {
		return false
	}
	if year%100 != 0 {
		return true
	}
	return year%400 == 0
}

// DaysInYear returns the denominator for the given basis at the given date.
func DaysInYear(basis YearBasis, at time.Time) int {
	switch basis {
	case Fixed360:
		return 360
	case Fixed364:
		return 364
	case Fixed365:
		return 365
	default:
		if IsLeapYear(at.Year()) {
			return 366
		}
		return 365
	}
}

// DaysInMonth returns the number of calendar days in the month containing t.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween counts the days from 'from' (inclusive) to 'to' (exclusive)
// under the given month basis. For Fixed30 the day-of-month is capped at 30
// on both ends.
func DaysBetween(from, to time.Time, basis MonthBasis) int {
	if basis == Fixed30 {
		d1 := from.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := to.Day()
		if d2 > 30 {
			d2 = 30
		}
		y1, m1 := from.Year(), int(from.Month())
		y2, m2 := to.Year(), int(to.Month())
		return 360*(y2-y1) + 30*(m2-m1) + (d2 - d1)
	}
	return int(midnight(to).Sub(midnight(from)).Hours() / 24)
}

// Fraction is a portion of a year expressed as days over a year denominator.
type Fraction struct {
	Days      int
	YearDays  int
	YearStart time.Time
}

// YearFractions splits [from, to) at calendar-year boundaries and returns one
// fraction per segment. For fixed-year bases the interval is a single
// fraction; the split matters only for ActualYear, where the denominator can
// change from 365 to 366 across New Year.
func YearFractions(from, to time.Time, yearBasis YearBasis, monthBasis MonthBasis) []Fraction {
	if !from.Before(to) {
		return nil
	}
	if yearBasis != ActualYear {
		return []Fraction{{
			Days:      DaysBetween(from, to, monthBasis),
			YearDays:  DaysInYear(yearBasis, from),
			YearStart: from,
		}}
	}
	var out []Fraction
	cursor := from
	for cursor.Before(to) {
		yearEnd := time.Date(cursor.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		segEnd := to
		if yearEnd.Before(to) {
			segEnd = yearEnd
		}
		out = append(out, Fraction{
			Days:      DaysBetween(cursor, segEnd, monthBasis),
			YearDays:  DaysInYear(yearBasis, cursor),
			YearStart: cursor,
		})
		cursor = segEnd
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
