// Package interest computes per-period interest over an outstanding-principal
// timeline and solves the constant installment amount for equal-installment
// amortization.
package interest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iwvelando/loan-engine/pkg/daycount"
	"github.com/iwvelando/loan-engine/pkg/money"
)

// ErrInvalidPause indicates an interest pause outside the loan bounds or
// overlapping another pause.
var ErrInvalidPause = errors.New("invalid interest pause")

// Pause is a date interval during which interest does not accrue. Both ends
// are inclusive on the day level; accrual treats the interval as
// [From, To+1d) in day arithmetic.
type Pause struct {
	From time.Time
	To   time.Time
}

// ValidatePauses checks that pauses are well-formed, non-overlapping, and
// fully contained within [start, maturity].
func ValidatePauses(pauses []Pause, start, maturity time.Time) error {
	sorted := make([]Pause, len(pauses))
	copy(sorted, pauses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From.Before(sorted[j].From) })
	for i, p := range sorted {
		if p.To.Before(p.From) {
			return fmt.Errorf("%w: end %s before start %s", ErrInvalidPause,
				p.To.Format("2006-01-02"), p.From.Format("2006-01-02"))
		}
		if p.From.Before(start) || p.To.After(maturity) {
			return fmt.Errorf("%w: %s..%s outside loan bounds %s..%s", ErrInvalidPause,
				p.From.Format("2006-01-02"), p.To.Format("2006-01-02"),
				start.Format("2006-01-02"), maturity.Format("2006-01-02"))
		}
		if i > 0 && !sorted[i-1].To.Before(p.From) {
			return fmt.Errorf("%w: %s..%s overlaps previous pause", ErrInvalidPause,
				p.From.Format("2006-01-02"), p.To.Format("2006-01-02"))
		}
	}
	return nil
}

// Segment is one step of an outstanding-principal timeline: Balance is
// outstanding over [From, To).
type Segment struct {
	Balance money.Amount
	From    time.Time
	To      time.Time
}

// Convention bundles the two day-count choices.
type Convention struct {
	Year  daycount.YearBasis
	Month daycount.MonthBasis
}

// Fraction returns the accrual year fraction for [from, to), excluding any
// days covered by a pause. The interval is split at calendar-year boundaries
// so that an ACTUAL basis uses 365 or 366 per segment.
func Fraction(from, to time.Time, conv Convention, pauses []Pause) money.Amount {
	total := decimal.Zero
	for _, iv := range excludePauses(from, to, pauses) {
		for _, f := range daycount.YearFractions(iv.from, iv.to, conv.Year, conv.Month) {
			total = total.Add(decimal.NewFromInt(int64(f.Days)).
				Div(decimal.NewFromInt(int64(f.YearDays))))
		}
	}
	return total
}

// Accrue returns the unrounded interest on a constant balance over [from, to)
// at the given annual percentage rate.
func Accrue(balance, annualRate money.Amount, from, to time.Time, conv Convention, pauses []Pause) money.Amount {
	return balance.Mul(money.RateFraction(annualRate)).Mul(Fraction(from, to, conv, pauses))
}

// AccrueTimeline sums accrual across a stepped balance timeline.
func AccrueTimeline(segments []Segment, annualRate money.Amount, conv Convention, pauses []Pause) money.Amount {
	total := decimal.Zero
	for _, s := range segments {
		total = total.Add(Accrue(s.Balance, annualRate, s.From, s.To, conv, pauses))
	}
	return total
}

// SolveInstallment computes the constant installment that amortizes principal
// to exactly zero across periods with the given per-period rate fractions.
// With varying period rates r_k the closed form is
//
//	A = P * Π(1+r_k) / Σ_k Π_{j>k}(1+r_j)
//
// which degenerates to an even principal split when every rate is zero.
func SolveInstallment(principal money.Amount, periodRates []money.Amount) money.Amount {
	n := len(periodRates)
	if n == 0 {
		return money.Zero
	}
	one := decimal.NewFromInt(1)
	allZero := true
	for _, r := range periodRates {
		if !r.IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}
	// suffix[k] = Π_{j>=k}(1+r_j); computed back to front.
	product := one
	denominator := decimal.Zero
	for k := n - 1; k >= 0; k-- {
		denominator = denominator.Add(product)
		product = product.Mul(one.Add(periodRates[k]))
	}
	return principal.Mul(product).Div(denominator)
}

type interval struct {
	from, to time.Time
}

// excludePauses subtracts pause days from [from, to), returning the remaining
// sub-intervals in order. Pause bounds are inclusive dates, so the excluded
// span is [p.From, p.To + 1 day).
func excludePauses(from, to time.Time, pauses []Pause) []interval {
	remaining := []interval{{from, to}}
	for _, p := range pauses {
		pFrom, pTo := p.From, p.To.AddDate(0, 0, 1)
		var next []interval
		for _, iv := range remaining {
			if !pFrom.Before(iv.to) || !iv.from.Before(pTo) {
				next = append(next, iv)
				continue
			}
			if iv.from.Before(pFrom) {
				next = append(next, interval{iv.from, pFrom})
			}
			if pTo.Before(iv.to) {
				next = append(next, interval{pTo, iv.to})
			}
		}
		remaining = next
	}
	return remaining
}
