package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/loan-engine/pkg/interest"
	"github.com/iwvelando/loan-engine/pkg/money"
)

// ErrInvalidTerms indicates loan terms rejected before schedule generation.
var ErrInvalidTerms = errors.New("invalid loan terms")

// AmortizationMethod is the policy for splitting payments into principal and
// interest across periods.
type AmortizationMethod string

const (
	EqualPrincipal   AmortizationMethod = "EQUAL_PRINCIPAL"
	EqualInstallment AmortizationMethod = "EQUAL_INSTALLMENT"
)

// InterestMethod is the interest computation model.
type InterestMethod string

const (
	Flat             InterestMethod = "FLAT"
	DecliningBalance InterestMethod = "DECLINING_BALANCE"
)

// PrepaymentPolicy selects how much interest a payoff quote includes.
type PrepaymentPolicy string

const (
	// TillPreClosureDate accrues interest only up to the payoff date.
	TillPreClosureDate PrepaymentPolicy = "TILL_PRE_CLOSURE_DATE"
	// TillRestOfPeriod includes the full current period's interest.
	TillRestOfPeriod PrepaymentPolicy = "TILL_REST_OF_PERIOD"
)

// LoanTerms are the immutable parameters a schedule is generated from. A new
// LoanTerms value is substituted on reschedule.
type LoanTerms struct {
	Principal  money.Amount
	AnnualRate money.Amount

	// Repayments is the number of repayment periods; Every and Unit define
	// the interval between them.
	Repayments int
	Every      int
	Unit       Frequency

	Amortization AmortizationMethod
	Interest     InterestMethod
	Convention   interest.Convention

	// PrincipalGrace periods have no principal due (interest only);
	// InterestGrace periods have no interest due.
	PrincipalGrace int
	InterestGrace  int

	// DownPaymentPercent, when positive, carves a principal-only period due
	// immediately at disbursement.
	DownPaymentPercent money.Amount

	// SubmittedOn is the loan submission date; the first disbursement may
	// not precede it.
	SubmittedOn time.Time

	PrepaymentPolicy      PrepaymentPolicy
	InterestRecalculation bool
}

// Disbursement is one tranche of principal release.
type Disbursement struct {
	Date   time.Time
	Amount money.Amount
}

// Maturity returns the unadjusted maturity date for the given start date.
func (t LoanTerms) Maturity(start time.Time) time.Time {
	dates, err := DueDates(start, t.Repayments, t.Every, t.Unit)
	if err != nil || len(dates) == 0 {
		return start
	}
	return dates[len(dates)-1]
}

// Progressive reports whether the terms use the progressive (declining
// balance, equal installment) method, the only method interest pauses are
// valid for.
func (t LoanTerms) Progressive() bool {
	return t.Interest == DecliningBalance && t.Amortization == EqualInstallment
}

// Validate rejects malformed terms before any schedule work begins.
func (t LoanTerms) Validate() error {
	if !t.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidTerms, t.Principal)
	}
	if t.Repayments <= 0 {
		return fmt.Errorf("%w: repayment count must be positive, got %d", ErrInvalidTerms, t.Repayments)
	}
	if t.Every <= 0 {
		return fmt.Errorf("%w: repayment interval must be positive, got %d", ErrInvalidTerms, t.Every)
	}
	if t.AnnualRate.IsNegative() {
		return fmt.Errorf("%w: annual rate may not be negative, got %s", ErrInvalidTerms, t.AnnualRate)
	}
	switch t.Unit {
	case Days, Weeks, Months:
	default:
		return fmt.Errorf("%w: unknown repayment frequency %q", ErrInvalidTerms, t.Unit)
	}
	switch t.Amortization {
	case EqualPrincipal, EqualInstallment:
	default:
		return fmt.Errorf("%w: unknown amortization method %q", ErrInvalidTerms, t.Amortization)
	}
	switch t.Interest {
	case Flat, DecliningBalance:
	default:
		return fmt.Errorf("%w: unknown interest method %q", ErrInvalidTerms, t.Interest)
	}
	if t.PrincipalGrace < 0 || t.PrincipalGrace >= t.Repayments {
		return fmt.Errorf("%w: principal grace %d must be in [0, %d)", ErrInvalidTerms, t.PrincipalGrace, t.Repayments)
	}
	if t.InterestGrace < 0 || t.InterestGrace > t.Repayments {
		return fmt.Errorf("%w: interest grace %d must be in [0, %d]", ErrInvalidTerms, t.InterestGrace, t.Repayments)
	}
	if t.DownPaymentPercent.IsNegative() || t.DownPaymentPercent.GreaterThanOrEqual(money.Hundred) {
		return fmt.Errorf("%w: down payment percent %s must be in [0, 100)", ErrInvalidTerms, t.DownPaymentPercent)
	}
	return nil
}
