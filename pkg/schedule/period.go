// Package schedule builds and maintains the period-by-period repayment plan
// for a loan: raw due dates, the amortized principal/interest split per
// period, and the paid/waived/written-off state mutated by allocation.
package schedule

import (
	"time"

	"github.com/iwvelando/loan-engine/pkg/money"
)

// Component identifies one of the four monetary buckets carried by a period.
type Component string

const (
	Penalty   Component = "PENALTY"
	Fee       Component = "FEE"
	Interest  Component = "INTEREST"
	Principal Component = "PRINCIPAL"
)

// Components lists all components in their conventional default allocation
// order.
var Components = []Component{Penalty, Fee, Interest, Principal}

// componentState tracks one bucket of a period.
type componentState struct {
	Due        money.Amount
	Paid       money.Amount
	Waived     money.Amount
	WrittenOff money.Amount
}

func (c componentState) outstanding() money.Amount {
	out := c.Due.Sub(c.Paid).Sub(c.Waived).Sub(c.WrittenOff)
	if out.IsNegative() {
		return money.Zero
	}
	return out
}

// Period is one row of the repayment plan. Index 0 is the disbursement
// period; repayment periods follow in due-date order. Periods are mutated
// only by allocation and replaced wholesale on regeneration.
type Period struct {
	Index int
	From  time.Time
	Due   time.Time

	// Disbursed is the tranche amount released in this period, if any.
	Disbursed money.Amount

	buckets map[Component]componentState

	// OutstandingAfter is the principal balance after this period under the
	// original plan.
	OutstandingAfter money.Amount
}

// NewPeriod returns a period with zeroed buckets.
func NewPeriod(index int, from, due time.Time) Period {
	return Period{
		Index:   index,
		From:    from,
		Due:     due,
		buckets: newBuckets(),
	}
}

func newBuckets() map[Component]componentState {
	return map[Component]componentState{
		Penalty:   {},
		Fee:       {},
		Interest:  {},
		Principal: {},
	}
}

// SetDue assigns the owed amount for a component.
func (p *Period) SetDue(c Component, amount money.Amount) {
	s := p.buckets[c]
	s.Due = amount
	p.buckets[c] = s
}

// AddDue increases the owed amount for a component, used when charges are
// levied onto an existing period.
func (p *Period) AddDue(c Component, amount money.Amount) {
	s := p.buckets[c]
	s.Due = s.Due.Add(amount)
	p.buckets[c] = s
}

// DueAmount returns the owed amount for a component.
func (p *Period) DueAmount(c Component) money.Amount { return p.buckets[c].Due }

// Paid returns the amount paid against a component.
func (p *Period) Paid(c Component) money.Amount { return p.buckets[c].Paid }

// Waived returns the amount waived for a component.
func (p *Period) Waived(c Component) money.Amount { return p.buckets[c].Waived }

// WrittenOff returns the amount written off for a component.
func (p *Period) WrittenOff(c Component) money.Amount { return p.buckets[c].WrittenOff }

// Outstanding returns what remains owed on a component.
func (p *Period) Outstanding(c Component) money.Amount { return p.buckets[c].outstanding() }

// TotalDue returns the sum owed across all components.
func (p *Period) TotalDue() money.Amount {
	total := money.Zero
	for _, c := range Components {
		total = total.Add(p.buckets[c].Due)
	}
	return total
}

// TotalOutstanding returns the sum outstanding across all components.
func (p *Period) TotalOutstanding() money.Amount {
	total := money.Zero
	for _, c := range Components {
		total = total.Add(p.buckets[c].outstanding())
	}
	return total
}

// Settled reports whether nothing remains owed on the period.
func (p *Period) Settled() bool {
	return money.IsZero(p.TotalOutstanding())
}

// Pay records a payment against one component, clamped to the component's
// outstanding amount. Returns the amount actually applied.
func (p *Period) Pay(c Component, amount money.Amount) money.Amount {
	if !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.outstanding())
	if !applied.IsPositive() {
		return money.Zero
	}
	s.Paid = s.Paid.Add(applied)
	p.buckets[c] = s
	return applied
}

// Unpay reverses a previously recorded payment, clamped to the paid amount.
// Returns the amount actually removed.
func (p *Period) Unpay(c Component, amount money.Amount) money.Amount {
	if !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.Paid)
	if !applied.IsPositive() {
		return money.Zero
	}
	s.Paid = s.Paid.Sub(applied)
	p.buckets[c] = s
	return applied
}

// Waive forgives part of a component. Principal is never waived; such calls
// apply nothing.
func (p *Period) Waive(c Component, amount money.Amount) money.Amount {
	if c == Principal || !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.outstanding())
	if !applied.IsPositive() {
		return money.Zero
	}
	s.Waived = s.Waived.Add(applied)
	p.buckets[c] = s
	return applied
}

// Unwaive reverses a previously recorded waiver.
func (p *Period) Unwaive(c Component, amount money.Amount) money.Amount {
	if !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.Waived)
	if !applied.IsPositive() {
		return money.Zero
	}
	s.Waived = s.Waived.Sub(applied)
	p.buckets[c] = s
	return applied
}

// WriteOff charges off part of a component's outstanding amount.
func (p *Period) WriteOff(c Component, amount money.Amount) money.Amount {
	if !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.outstanding())
	if !applied.IsPositive() {
		return money.Zero
	}
	s.WrittenOff = s.WrittenOff.Add(applied)
	p.buckets[c] = s
	return applied
}

// Unwriteoff reverses a previous charge-off on a component.
func (p *Period) Unwriteoff(c Component, amount money.Amount) money.Amount {
	if !amount.IsPositive() {
		return money.Zero
	}
	s := p.buckets[c]
	applied := money.Min(amount, s.WrittenOff)
	if !applied.IsPositive() {
		return money.Zero
	}
	s.WrittenOff = s.WrittenOff.Sub(applied)
	p.buckets[c] = s
	return applied
}

// Clone returns a deep copy of the period.
func (p Period) Clone() Period {
	out := p
	out.buckets = make(map[Component]componentState, len(p.buckets))
	for c, s := range p.buckets {
		out.buckets[c] = s
	}
	return out
}

// ClonePeriods deep-copies a period slice so callers can mutate the copy
// without aliasing the original plan.
func ClonePeriods(periods []Period) []Period {
	out := make([]Period, len(periods))
	for i, p := range periods {
		out[i] = p.Clone()
	}
	return out
}
