package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iwvelando/loan-engine/pkg/calendar"
	"github.com/iwvelando/loan-engine/pkg/interest"
	"github.com/iwvelando/loan-engine/pkg/money"
)

// ErrInvalidDisbursement indicates a disbursement set that cannot fund the
// loan as approved.
var ErrInvalidDisbursement = errors.New("invalid disbursement")

// Inputs carries everything needed to build or rebuild a plan. All inputs are
// in-memory values; the generator performs no I/O.
type Inputs struct {
	Terms         LoanTerms
	Disbursements []Disbursement
	Holidays      []calendar.Holiday
	Working       calendar.WorkingDays
	Meeting       *calendar.MeetingSchedule
	DefaultPolicy calendar.ReschedulePolicy
	Pauses        []interest.Pause
}

// Generator builds schedule period sequences.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a schedule generator. A nil logger is replaced with a
// no-op logger.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// strategyKey selects the amortization engine for a terms combination.
type strategyKey struct {
	interest     InterestMethod
	amortization AmortizationMethod
}

// buildSpec is the window a strategy amortizes: a starting balance, the total
// principal to retire across the rows, and any tranches landing inside the
// window.
type buildSpec struct {
	terms      LoanTerms
	initial    money.Amount   // outstanding balance at the window start
	financed   money.Amount   // total principal amortized across these rows
	tranches   []Disbursement // tranches stepping the balance inside the window
	rows       []dateRow
	pauses     []interest.Pause
	startIndex int // period index of the first row
	elapsed    int // repayment ordinals already consumed by kept history
}

type dateRow struct {
	from time.Time
	due  time.Time
}

type strategyFunc func(spec buildSpec) []Period

// strategies dispatches {interest method × amortization method} to the
// engine that amortizes it. Flat interest splits evenly regardless of the
// amortization choice.
var strategies = map[strategyKey]strategyFunc{
	{Flat, EqualPrincipal}:               buildFlat,
	{Flat, EqualInstallment}:             buildFlat,
	{DecliningBalance, EqualPrincipal}:   buildEqualPrincipal,
	{DecliningBalance, EqualInstallment}: buildEqualInstallment,
}

// Generate builds the full initial plan: a disbursement period, an optional
// down-payment period, then the repayment periods produced by the strategy
// for the terms' method combination.
func (g *Generator) Generate(in Inputs) ([]Period, error) {
	if err := in.Terms.Validate(); err != nil {
		return nil, err
	}
	disbursements, err := validateDisbursements(in.Terms, in.Disbursements)
	if err != nil {
		return nil, err
	}
	start := disbursements[0].Date

	if len(in.Pauses) > 0 {
		if !in.Terms.Progressive() {
			return nil, fmt.Errorf("%w: pauses are only valid for the progressive method", interest.ErrInvalidPause)
		}
		submitted := in.Terms.SubmittedOn
		if submitted.IsZero() {
			submitted = start
		}
		if err := interest.ValidatePauses(in.Pauses, submitted, in.Terms.Maturity(start)); err != nil {
			return nil, err
		}
	}

	rawDates, err := DueDates(start, in.Terms.Repayments, in.Terms.Every, in.Terms.Unit)
	if err != nil {
		return nil, err
	}
	dueDates := calendar.Adjust(rawDates, calendar.Options{
		Holidays:      in.Holidays,
		Working:       in.Working,
		Meeting:       in.Meeting,
		DefaultPolicy: in.DefaultPolicy,
	})
	if err := validateTranches(disbursements[1:], dueDates[len(dueDates)-1]); err != nil {
		return nil, err
	}

	totalDisbursed := money.Zero
	for _, d := range disbursements {
		totalDisbursed = totalDisbursed.Add(d.Amount)
	}
	downPayment := money.Round(totalDisbursed.Mul(in.Terms.DownPaymentPercent).Div(money.Hundred))
	financed := totalDisbursed.Sub(downPayment)

	var periods []Period
	index := 0

	disbursePeriod := NewPeriod(index, start, start)
	disbursePeriod.Disbursed = disbursements[0].Amount
	disbursePeriod.OutstandingAfter = disbursements[0].Amount
	periods = append(periods, disbursePeriod)
	index++

	if downPayment.IsPositive() {
		dp := NewPeriod(index, start, start)
		dp.SetDue(Principal, downPayment)
		dp.OutstandingAfter = disbursements[0].Amount.Sub(downPayment)
		periods = append(periods, dp)
		index++
	}

	rows := make([]dateRow, len(dueDates))
	from := start
	for i, due := range dueDates {
		rows[i] = dateRow{from: from, due: due}
		from = due
	}

	strategy, ok := strategies[strategyKey{in.Terms.Interest, in.Terms.Amortization}]
	if !ok {
		return nil, fmt.Errorf("%w: no engine for %s/%s", ErrInvalidTerms, in.Terms.Interest, in.Terms.Amortization)
	}
	repayments := strategy(buildSpec{
		terms:      in.Terms,
		initial:    disbursements[0].Amount.Sub(downPayment),
		financed:   financed,
		tranches:   disbursements[1:],
		rows:       rows,
		pauses:     in.Pauses,
		startIndex: index,
	})
	periods = append(periods, repayments...)

	g.logger.Debug("generated schedule",
		zap.String("op", "schedule.Generate"),
		zap.Int("periods", len(periods)),
		zap.String("financed", financed.StringFixed(money.Scale)),
		zap.String("method", string(in.Terms.Interest)+"/"+string(in.Terms.Amortization)),
	)
	return periods, nil
}

// RescheduleNextInstallments regenerates only the not-yet-due periods as of
// the given date, leaving due and paid history untouched. New tranches, a
// rate change, or an inserted pause route through here; newTerms, when
// non-nil, replaces the terms for the regenerated tail.
func (g *Generator) RescheduleNextInstallments(periods []Period, asOf time.Time, in Inputs, newTerms *LoanTerms) ([]Period, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no existing schedule to reschedule", ErrInvalidTerms)
	}
	terms := in.Terms
	if newTerms != nil {
		terms = *newTerms
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	boundary := len(periods)
	for i, p := range periods {
		if p.Due.After(asOf) {
			boundary = i
			break
		}
	}
	kept := ClonePeriods(periods[:boundary])
	tail := periods[boundary:]
	if len(tail) == 0 {
		return kept, nil
	}

	// Repayment ordinals consumed by history; the disbursement and
	// down-payment rows (From == Due) carry no repayment ordinal.
	elapsed := 0
	for _, p := range kept {
		if !p.Due.Equal(p.From) {
			elapsed++
		}
	}

	balance := money.Zero
	if boundary > 0 {
		balance = kept[boundary-1].OutstandingAfter
	}

	var rows []dateRow
	if newTerms == nil {
		rows = make([]dateRow, len(tail))
		for i, p := range tail {
			rows[i] = dateRow{from: p.From, due: p.Due}
		}
	} else {
		raw, err := DueDates(asOf, terms.Repayments, terms.Every, terms.Unit)
		if err != nil {
			return nil, err
		}
		dueDates := calendar.Adjust(raw, calendar.Options{
			Holidays:      in.Holidays,
			Working:       in.Working,
			Meeting:       in.Meeting,
			DefaultPolicy: in.DefaultPolicy,
		})
		// Accrual resumes at the last kept due date, not at asOf, so no
		// days fall outside every period.
		from := asOf
		if boundary > 0 {
			from = kept[boundary-1].Due
		}
		rows = make([]dateRow, len(dueDates))
		for i, due := range dueDates {
			rows[i] = dateRow{from: from, due: due}
			from = due
		}
	}

	// Tranches dated after the boundary re-enter the balance through the
	// per-period timeline during regeneration. Tranches on or before the
	// boundary are already inside kept history's closing balance.
	var tranches []Disbursement
	if len(in.Disbursements) > 1 {
		for _, d := range in.Disbursements[1:] {
			if d.Date.After(rows[0].from) {
				tranches = append(tranches, d)
			}
		}
	}
	if err := validateTranches(tranches, rows[len(rows)-1].due); err != nil {
		return nil, err
	}

	strategy, ok := strategies[strategyKey{terms.Interest, terms.Amortization}]
	if !ok {
		return nil, fmt.Errorf("%w: no engine for %s/%s", ErrInvalidTerms, terms.Interest, terms.Amortization)
	}
	startIndex := 0
	if boundary > 0 {
		startIndex = kept[boundary-1].Index + 1
	}
	financed := balance
	for _, d := range tranches {
		financed = financed.Add(d.Amount)
	}
	regenerated := strategy(buildSpec{
		terms:      terms,
		initial:    balance,
		financed:   financed,
		tranches:   tranches,
		rows:       rows,
		pauses:     in.Pauses,
		startIndex: startIndex,
		elapsed:    elapsed,
	})

	g.logger.Debug("rescheduled remaining installments",
		zap.String("op", "schedule.RescheduleNextInstallments"),
		zap.String("asOf", asOf.Format("2006-01-02")),
		zap.Int("kept", len(kept)),
		zap.Int("regenerated", len(regenerated)),
	)
	return append(kept, regenerated...), nil
}

func validateDisbursements(terms LoanTerms, disbursements []Disbursement) ([]Disbursement, error) {
	if len(disbursements) == 0 {
		return nil, fmt.Errorf("%w: at least one disbursement is required", ErrInvalidDisbursement)
	}
	sorted := make([]Disbursement, len(disbursements))
	copy(sorted, disbursements)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	total := money.Zero
	for _, d := range sorted {
		if !d.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidDisbursement, d.Amount)
		}
		total = total.Add(d.Amount)
	}
	if total.GreaterThan(terms.Principal) {
		return nil, fmt.Errorf("%w: total %s exceeds approved principal %s",
			ErrInvalidDisbursement, total.StringFixed(money.Scale), terms.Principal.StringFixed(money.Scale))
	}
	if !terms.SubmittedOn.IsZero() && sorted[0].Date.Before(terms.SubmittedOn) {
		return nil, fmt.Errorf("%w: first disbursement %s precedes submission %s",
			ErrInvalidDisbursement, sorted[0].Date.Format("2006-01-02"), terms.SubmittedOn.Format("2006-01-02"))
	}
	// Same-day tranches are one release: fold them together so the first
	// entry carries the full opening balance.
	merged := make([]Disbursement, 0, len(sorted))
	for _, d := range sorted {
		if n := len(merged); n > 0 && d.Date.Equal(merged[n-1].Date) {
			merged[n-1].Amount = merged[n-1].Amount.Add(d.Amount)
			continue
		}
		merged = append(merged, d)
	}
	return merged, nil
}

// validateTranches rejects mid-schedule tranches dated past the final due
// date; such a tranche would never enter any period's balance timeline.
func validateTranches(tranches []Disbursement, lastDue time.Time) error {
	for _, d := range tranches {
		if d.Date.After(lastDue) {
			return fmt.Errorf("%w: tranche on %s falls after the final due date %s",
				ErrInvalidDisbursement, d.Date.Format("2006-01-02"), lastDue.Format("2006-01-02"))
		}
	}
	return nil
}

// periodSegments builds the balance timeline for one period, stepping up at
// tranche dates that fall inside it. Returns the segments and the balance at
// the end of the period before any principal repayment. A tranche landing
// exactly on the due date accrues no interest this period but is part of the
// closing balance.
func periodSegments(balance money.Amount, row dateRow, tranches []Disbursement) ([]interest.Segment, money.Amount) {
	segments := []interest.Segment{{Balance: balance, From: row.from, To: row.due}}
	for _, d := range tranches {
		if !d.Date.After(row.from) || d.Date.After(row.due) {
			continue
		}
		balance = balance.Add(d.Amount)
		if d.Date.Before(row.due) {
			last := &segments[len(segments)-1]
			to := last.To
			last.To = d.Date
			segments = append(segments, interest.Segment{Balance: balance, From: d.Date, To: to})
		}
	}
	return segments, balance
}

func buildEqualPrincipal(spec buildSpec) []Period {
	n := len(spec.rows)
	periods := make([]Period, 0, n)
	conv := spec.terms.Convention

	grace := spec.terms.PrincipalGrace - spec.elapsed
	if grace < 0 {
		grace = 0
	}
	interestGrace := spec.terms.InterestGrace - spec.elapsed
	if interestGrace < 0 {
		interestGrace = 0
	}

	payers := n - grace
	perPrincipal := money.Zero
	if payers > 0 {
		perPrincipal = money.Round(spec.financed.Div(decimal.NewFromInt(int64(payers))))
	}

	balance := spec.initial
	allocated := money.Zero
	lastPayer := lastPrincipalRow(n, grace)
	for i, row := range spec.rows {
		p := NewPeriod(spec.startIndex+i, row.from, row.due)

		segments, stepped := periodSegments(balance, row, spec.tranches)
		interestDue := money.Round(interest.AccrueTimeline(segments, spec.terms.AnnualRate, conv, spec.pauses))
		if i < interestGrace {
			interestDue = money.Zero
		}
		p.SetDue(Interest, interestDue)

		for _, d := range spec.tranches {
			if d.Date.After(row.from) && !d.Date.After(row.due) {
				p.Disbursed = p.Disbursed.Add(d.Amount)
			}
		}

		principalDue := money.Zero
		if i >= grace {
			if i == lastPayer {
				// Final paying period absorbs the rounding remainder.
				principalDue = spec.financed.Sub(allocated)
			} else {
				principalDue = perPrincipal
			}
		}
		p.SetDue(Principal, principalDue)
		allocated = allocated.Add(principalDue)

		balance = stepped.Sub(principalDue)
		p.OutstandingAfter = money.Round(balance)
		periods = append(periods, p)
	}
	return periods
}

func buildEqualInstallment(spec buildSpec) []Period {
	n := len(spec.rows)
	periods := make([]Period, 0, n)
	conv := spec.terms.Convention
	rateFraction := money.RateFraction(spec.terms.AnnualRate)

	grace := spec.terms.PrincipalGrace - spec.elapsed
	if grace < 0 {
		grace = 0
	}
	interestGrace := spec.terms.InterestGrace - spec.elapsed
	if interestGrace < 0 {
		interestGrace = 0
	}

	// Per-period rate fractions for the installment solver; grace periods
	// pay no principal so they are excluded from the annuity.
	var rates []money.Amount
	for i, row := range spec.rows {
		if i < grace {
			continue
		}
		rates = append(rates, rateFraction.Mul(interest.Fraction(row.from, row.due, conv, spec.pauses)))
	}
	installment := money.Round(interest.SolveInstallment(spec.financed, rates))

	balance := spec.initial
	for i, row := range spec.rows {
		p := NewPeriod(spec.startIndex+i, row.from, row.due)

		segments, stepped := periodSegments(balance, row, spec.tranches)
		interestDue := money.Round(interest.AccrueTimeline(segments, spec.terms.AnnualRate, conv, spec.pauses))
		if i < interestGrace {
			interestDue = money.Zero
		}
		p.SetDue(Interest, interestDue)

		for _, d := range spec.tranches {
			if d.Date.After(row.from) && !d.Date.After(row.due) {
				p.Disbursed = p.Disbursed.Add(d.Amount)
			}
		}

		principalDue := money.Zero
		switch {
		case i < grace:
			// Interest-only period.
		case i == n-1:
			// Last period retires whatever balance remains, absorbing the
			// accumulated sub-cent rounding difference.
			principalDue = money.Round(stepped)
		default:
			principalDue = installment.Sub(interestDue)
			if principalDue.IsNegative() {
				principalDue = money.Zero
			}
			if principalDue.GreaterThan(stepped) {
				principalDue = money.Round(stepped)
			}
		}
		p.SetDue(Principal, principalDue)

		balance = stepped.Sub(principalDue)
		p.OutstandingAfter = money.Round(balance)
		periods = append(periods, p)
	}
	return periods
}

// buildFlat spreads principal and flat interest evenly; the last period
// absorbs the rounding residue of both components.
func buildFlat(spec buildSpec) []Period {
	n := len(spec.rows)
	periods := make([]Period, 0, n)
	conv := spec.terms.Convention

	grace := spec.terms.PrincipalGrace - spec.elapsed
	if grace < 0 {
		grace = 0
	}
	interestGrace := spec.terms.InterestGrace - spec.elapsed
	if interestGrace < 0 {
		interestGrace = 0
	}

	totalFraction := money.Zero
	for _, row := range spec.rows {
		totalFraction = totalFraction.Add(interest.Fraction(row.from, row.due, conv, nil))
	}
	totalInterest := money.Round(spec.financed.Mul(money.RateFraction(spec.terms.AnnualRate)).Mul(totalFraction))

	interestPayers := n - interestGrace
	perInterest := money.Zero
	if interestPayers > 0 {
		perInterest = money.Round(totalInterest.Div(decimal.NewFromInt(int64(interestPayers))))
	}
	payers := n - grace
	perPrincipal := money.Zero
	if payers > 0 {
		perPrincipal = money.Round(spec.financed.Div(decimal.NewFromInt(int64(payers))))
	}

	balance := spec.initial
	allocatedPrincipal := money.Zero
	allocatedInterest := money.Zero
	lastPayer := lastPrincipalRow(n, grace)
	for i, row := range spec.rows {
		p := NewPeriod(spec.startIndex+i, row.from, row.due)

		_, stepped := periodSegments(balance, row, spec.tranches)
		balance = stepped
		for _, d := range spec.tranches {
			if d.Date.After(row.from) && !d.Date.After(row.due) {
				p.Disbursed = p.Disbursed.Add(d.Amount)
			}
		}

		interestDue := money.Zero
		if i >= interestGrace {
			if i == n-1 {
				interestDue = totalInterest.Sub(allocatedInterest)
			} else {
				interestDue = perInterest
			}
		}
		p.SetDue(Interest, interestDue)
		allocatedInterest = allocatedInterest.Add(interestDue)

		principalDue := money.Zero
		if i >= grace {
			if i == lastPayer {
				principalDue = spec.financed.Sub(allocatedPrincipal)
			} else {
				principalDue = perPrincipal
			}
		}
		p.SetDue(Principal, principalDue)
		allocatedPrincipal = allocatedPrincipal.Add(principalDue)

		balance = balance.Sub(principalDue)
		p.OutstandingAfter = money.Round(balance)
		periods = append(periods, p)
	}
	return periods
}

func lastPrincipalRow(n, grace int) int {
	if n-grace <= 0 {
		return -1
	}
	return n - 1
}
