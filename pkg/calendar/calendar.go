// Package calendar rewrites raw due date sequences according to working-day
// rules, holiday intervals, and an optional fixed meeting schedule.
package calendar

import (
	"fmt"
	"time"

	"github.com/iwvelando/loan-engine/pkg/daycount"
)

// ReschedulePolicy determines how a due date falling on a holiday or
// non-working day is moved.
type ReschedulePolicy string

const (
	// NextWorkingDay walks forward one day at a time to the next working,
	// non-holiday day.
	NextWorkingDay ReschedulePolicy = "MOVE_TO_NEXT_WORKING_DAY"
	// PreviousWorkingDay walks backward to the previous working,
	// non-holiday day.
	PreviousWorkingDay ReschedulePolicy = "MOVE_TO_PREVIOUS_WORKING_DAY"
	// RescheduleFutureInstallments moves the affected date forward and
	// shifts every subsequent date by the same number of days, preserving
	// inter-period spacing.
	RescheduleFutureInstallments ReschedulePolicy = "RESCHEDULE_FUTURE_INSTALLMENTS"
)

// ParsePolicy validates a configured reschedule policy.
func ParsePolicy(s string) (ReschedulePolicy, error) {
	switch ReschedulePolicy(s) {
	case NextWorkingDay, PreviousWorkingDay, RescheduleFutureInstallments:
		return ReschedulePolicy(s), nil
	}
	return "", fmt.Errorf("unknown reschedule policy %q", s)
}

// Holiday is a closed date interval during which due dates may not fall.
// An empty Policy defers to the adjuster's default.
type Holiday struct {
	From   time.Time
	To     time.Time
	Policy ReschedulePolicy
}

// Contains reports whether d falls inside the holiday interval.
func (h Holiday) Contains(d time.Time) bool {
	return !d.Before(h.From) && !d.After(h.To)
}

// WorkingDays is the set of weekdays on which business is conducted.
type WorkingDays map[time.Weekday]bool

// DefaultWorkingDays is Monday through Friday.
func DefaultWorkingDays() WorkingDays {
	return WorkingDays{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

// MeetingSchedule pins due dates to a fixed day of the month, as used for
// group lending collection meetings. When present it takes precedence over
// holiday and working-day adjustment.
type MeetingSchedule struct {
	DayOfMonth int
}

// Options configures a single adjustment pass.
type Options struct {
	Holidays      []Holiday
	Working       WorkingDays
	Meeting       *MeetingSchedule
	DefaultPolicy ReschedulePolicy
}

// Adjust rewrites the raw due date sequence. Each date is resolved
// independently in original sequence order; the output always has the same
// length as the input. Two adjusted dates are allowed to collide; the
// adjuster never de-duplicates.
func Adjust(dates []time.Time, opts Options) []time.Time {
	working := opts.Working
	if len(working) == 0 {
		working = DefaultWorkingDays()
	}
	policy := opts.DefaultPolicy
	if policy == "" {
		policy = NextWorkingDay
	}

	adjusted := make([]time.Time, len(dates))
	shift := 0 // accumulated day shift from RescheduleFutureInstallments
	for i, raw := range dates {
		d := raw.AddDate(0, 0, shift)

		if opts.Meeting != nil {
			adjusted[i] = snapToMeetingDay(d, opts.Meeting.DayOfMonth)
			continue
		}

		if isValid(d, working, opts.Holidays) {
			adjusted[i] = d
			continue
		}

		p := policy
		if hp := holidayPolicy(d, opts.Holidays); hp != "" {
			p = hp
		}
		switch p {
		case PreviousWorkingDay:
			adjusted[i] = walk(d, -1, working, opts.Holidays)
		case RescheduleFutureInstallments:
			moved := walk(d, 1, working, opts.Holidays)
			shift += daycount.DaysBetween(d, moved, daycount.ActualMonth)
			adjusted[i] = moved
		default:
			adjusted[i] = walk(d, 1, working, opts.Holidays)
		}
	}
	return adjusted
}

// NextWorkingDate returns d itself when it is a working non-holiday day, or
// the next such day.
func NextWorkingDate(d time.Time, working WorkingDays, holidays []Holiday) time.Time {
	if len(working) == 0 {
		working = DefaultWorkingDays()
	}
	if isValid(d, working, holidays) {
		return d
	}
	return walk(d, 1, working, holidays)
}

func isValid(d time.Time, working WorkingDays, holidays []Holiday) bool {
	if !working[d.Weekday()] {
		return false
	}
	for _, h := range holidays {
		if h.Contains(d) {
			return false
		}
	}
	return true
}

func holidayPolicy(d time.Time, holidays []Holiday) ReschedulePolicy {
	for _, h := range holidays {
		if h.Contains(d) && h.Policy != "" {
			return h.Policy
		}
	}
	return ""
}

func walk(d time.Time, step int, working WorkingDays, holidays []Holiday) time.Time {
	for {
		d = d.AddDate(0, 0, step)
		if isValid(d, working, holidays) {
			return d
		}
	}
}

// snapToMeetingDay moves d to the nearest date with the meeting's day of
// month, looking at the previous, current, and next month and clamping to
// month end. Ties resolve to the later date.
func snapToMeetingDay(d time.Time, day int) time.Time {
	best := d
	bestDist := -1
	for _, m := range []int{-1, 0, 1} {
		anchor := time.Date(d.Year(), d.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		dd := day
		if max := daycount.DaysInMonth(anchor); dd > max {
			dd = max
		}
		candidate := time.Date(anchor.Year(), anchor.Month(), dd, 0, 0, 0, 0, time.UTC)
		dist := daycount.DaysBetween(candidate, d, daycount.ActualMonth)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && candidate.After(best)) {
			best = candidate
			bestDist = dist
		}
	}
	return best
}
