// Package prepayment computes the exact payoff amount for settling a loan
// before maturity: outstanding principal plus interest accrued to the payoff
// date, with pro-rata future interest excluded.
package prepayment

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/loan-engine/pkg/interest"
	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

var (
	// ErrForeclosureNotAllowed indicates a loan that cannot be foreclosed,
	// e.g. one with interest recalculation enabled.
	ErrForeclosureNotAllowed = errors.New("foreclosure not allowed")

	// ErrInvalidAsOfDate indicates a payoff date outside the acceptable
	// window.
	ErrInvalidAsOfDate = errors.New("invalid payoff date")
)

// Quote is the payoff amount split by component.
type Quote struct {
	Principal money.Amount
	Interest  money.Amount
	Total     money.Amount
}

// Options supplies the ambient facts the calculator cannot derive from the
// schedule itself.
type Options struct {
	// Now is the evaluation clock; a zero value means time.Now.
	Now time.Time

	// LastTransaction is the date of the most recent posted transaction;
	// the payoff date may not precede it.
	LastTransaction time.Time

	// Pauses are the loan's interest pauses, needed to accrue partial
	// period interest correctly.
	Pauses []interest.Pause
}

// Calculator answers as-of-date payoff queries without mutating the schedule.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a payoff calculator. A nil logger is replaced with a
// no-op logger.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// Calculate computes the payoff quote as of the given date: all unpaid
// principal, plus unpaid interest on periods already due, plus the current
// period's interest either accrued to the payoff date (TILL_PRE_CLOSURE_DATE)
// or in full (TILL_REST_OF_PERIOD), net of interest already paid or waived in
// that period.
func (c *Calculator) Calculate(periods []schedule.Period, terms schedule.LoanTerms, asOf time.Time, opts Options) (Quote, error) {
	if terms.InterestRecalculation {
		return Quote{}, fmt.Errorf("%w: interest recalculation is enabled", ErrForeclosureNotAllowed)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if asOf.After(now) {
		return Quote{}, fmt.Errorf("%w: %s is in the future", ErrInvalidAsOfDate, asOf.Format("2006-01-02"))
	}
	if !opts.LastTransaction.IsZero() && asOf.Before(opts.LastTransaction) {
		return Quote{}, fmt.Errorf("%w: %s precedes the last transaction on %s",
			ErrInvalidAsOfDate, asOf.Format("2006-01-02"), opts.LastTransaction.Format("2006-01-02"))
	}
	if len(periods) == 0 {
		return Quote{}, fmt.Errorf("%w: loan has no schedule", ErrInvalidAsOfDate)
	}

	principal := money.Zero
	interestDue := money.Zero
	balanceBefore := money.Zero
	for _, p := range periods {
		principal = principal.Add(p.Outstanding(schedule.Principal))

		switch {
		case !p.Due.After(asOf):
			// Fully elapsed period: whatever interest remains is owed.
			interestDue = interestDue.Add(p.Outstanding(schedule.Interest))
		case p.From.Before(asOf) && p.Due.After(asOf):
			// Enclosing period: accrue to the payoff date or take the
			// full period per the configured policy.
			current := p.DueAmount(schedule.Interest)
			if terms.PrepaymentPolicy != schedule.TillRestOfPeriod {
				current = money.Round(interest.Accrue(balanceBefore, terms.AnnualRate, p.From, asOf, terms.Convention, opts.Pauses))
			}
			current = money.Max(current.Sub(p.Paid(schedule.Interest)).Sub(p.Waived(schedule.Interest)), money.Zero)
			interestDue = interestDue.Add(current)
		}
		balanceBefore = p.OutstandingAfter
	}

	quote := Quote{
		Principal: money.Round(principal),
		Interest:  money.Round(interestDue),
	}
	quote.Total = quote.Principal.Add(quote.Interest)

	c.logger.Debug("computed payoff quote",
		zap.String("op", "prepayment.Calculate"),
		zap.String("asOf", asOf.Format("2006-01-02")),
		zap.String("principal", quote.Principal.StringFixed(money.Scale)),
		zap.String("interest", quote.Interest.StringFixed(money.Scale)),
	)
	return quote, nil
}
