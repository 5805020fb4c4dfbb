// Package allocation distributes financial transactions across the
// penalty/fee/interest/principal buckets of a live schedule, following a
// configurable allocation order, and records the per-installment mappings
// needed for reversal and reporting.
package allocation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

// ErrInvalidTransaction indicates a transaction rejected before any mutation.
var ErrInvalidTransaction = errors.New("invalid transaction")

// ErrInvalidOrder indicates a malformed allocation order configuration.
var ErrInvalidOrder = errors.New("invalid allocation order")

// Kind classifies a financial transaction.
type Kind string

const (
	Repayment      Kind = "REPAYMENT"
	InterestWaiver Kind = "INTEREST_WAIVER"
	ChargeWaiver   Kind = "CHARGE_WAIVER"
	Refund         Kind = "REFUND"
	ChargePayment  Kind = "CHARGE_PAYMENT"
	ChargeOff      Kind = "CHARGE_OFF"
)

// ParseKind validates a configured transaction kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Repayment, InterestWaiver, ChargeWaiver, Refund, ChargePayment, ChargeOff:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, s)
}

// Transaction is one immutable financial event applied to the schedule.
// Reversal is expressed as a new transaction, not a mutation of this one.
type Transaction struct {
	ID     uuid.UUID
	Date   time.Time
	Amount money.Amount
	Kind   Kind

	// ChargeComponent selects the bucket a CHARGE_PAYMENT targets: Fee or
	// Penalty. Ignored for other kinds.
	ChargeComponent schedule.Component
}

// NewTransaction assigns a fresh ID to a transaction.
func NewTransaction(date time.Time, amount money.Amount, kind Kind) Transaction {
	return Transaction{ID: uuid.New(), Date: date, Amount: amount, Kind: kind}
}

// Order is the allocation configuration supplied per loan product. It is an
// immutable value passed into each call; the processor holds no state.
type Order struct {
	// Sequence is an ordered permutation of the four components.
	Sequence []schedule.Component

	// SpillExcess lets a remainder flow into the next open installment.
	SpillExcess bool

	// ChronologicalOrder walks installments by period index rather than by
	// (possibly holiday-shifted) due date.
	ChronologicalOrder bool

	// OverpaymentAsAdvance keeps any final residue as an advance credit
	// instead of treating it as an error.
	OverpaymentAsAdvance bool
}

// DefaultOrder is penalty, fee, interest, principal with spill-over enabled.
func DefaultOrder() Order {
	return Order{
		Sequence:             []schedule.Component{schedule.Penalty, schedule.Fee, schedule.Interest, schedule.Principal},
		SpillExcess:          true,
		OverpaymentAsAdvance: true,
	}
}

// Validate checks the sequence is a permutation of all four components.
func (o Order) Validate() error {
	if len(o.Sequence) != len(schedule.Components) {
		return fmt.Errorf("%w: sequence must name all %d components", ErrInvalidOrder, len(schedule.Components))
	}
	seen := make(map[schedule.Component]bool, len(o.Sequence))
	for _, c := range o.Sequence {
		switch c {
		case schedule.Penalty, schedule.Fee, schedule.Interest, schedule.Principal:
		default:
			return fmt.Errorf("%w: unknown component %q", ErrInvalidOrder, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: component %q repeated", ErrInvalidOrder, c)
		}
		seen[c] = true
	}
	return nil
}

// Action records which period operation produced a mapping, so reversal can
// unwind it exactly.
type Action string

const (
	ActionPay      Action = "PAY"
	ActionUnpay    Action = "UNPAY"
	ActionWaive    Action = "WAIVE"
	ActionWriteOff Action = "WRITE_OFF"
)

// Mapping is the audit-trail record tying a transaction to the component
// amount it moved on one installment. Amounts are always non-zero.
type Mapping struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	PeriodIndex   int
	Component     schedule.Component
	Action        Action
	Amount        money.Amount
}

// Result is the outcome of applying one transaction.
type Result struct {
	Periods  []schedule.Period
	Mappings []Mapping

	// Unallocated is the residue left after no installment had outstanding
	// balance: an over-payment held as advance credit.
	Unallocated money.Amount
}

// Processor applies transactions to schedules. It is stateless apart from
// its logger and safe to reuse across loans.
type Processor struct {
	logger *zap.Logger
}

// NewProcessor creates a processor. A nil logger is replaced with a no-op
// logger.
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

// Apply distributes one transaction across the schedule per the allocation
// order. The input periods are never mutated; the result carries an updated
// copy plus the mapping records. A zero-amount transaction is a no-op.
func (pr *Processor) Apply(periods []schedule.Period, tx Transaction, order Order) (Result, error) {
	if err := order.Validate(); err != nil {
		return Result{}, err
	}
	if tx.Amount.IsNegative() {
		return Result{}, fmt.Errorf("%w: amount %s is negative", ErrInvalidTransaction, tx.Amount.StringFixed(money.Scale))
	}
	updated := schedule.ClonePeriods(periods)
	if tx.Kind != ChargeOff && money.IsZero(tx.Amount) {
		return Result{Periods: updated, Unallocated: money.Zero}, nil
	}

	var (
		mappings    []Mapping
		unallocated = money.Zero
		err         error
	)
	switch tx.Kind {
	case Repayment:
		mappings, unallocated = pr.pay(updated, tx, order, order.Sequence)
	case ChargePayment:
		var target schedule.Component
		target, err = chargeTarget(tx)
		if err == nil {
			mappings, unallocated = pr.pay(updated, tx, order, []schedule.Component{target})
		}
	case InterestWaiver:
		mappings, unallocated = pr.waive(updated, tx, order, []schedule.Component{schedule.Interest})
	case ChargeWaiver:
		mappings, unallocated = pr.waive(updated, tx, order, []schedule.Component{schedule.Penalty, schedule.Fee})
	case Refund:
		mappings, unallocated = pr.refund(updated, tx, order)
	case ChargeOff:
		mappings = pr.chargeOff(updated, tx)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, tx.Kind)
	}
	if err != nil {
		return Result{}, err
	}

	pr.logger.Debug("allocated transaction",
		zap.String("op", "allocation.Apply"),
		zap.String("kind", string(tx.Kind)),
		zap.String("amount", tx.Amount.StringFixed(money.Scale)),
		zap.Int("mappings", len(mappings)),
		zap.String("unallocated", unallocated.StringFixed(money.Scale)),
	)
	return Result{Periods: updated, Mappings: mappings, Unallocated: unallocated}, nil
}

// Reverse unwinds the mappings of a previously applied transaction, restoring
// every touched component to its prior state. Mappings are undone in reverse
// order of application.
func (pr *Processor) Reverse(periods []schedule.Period, mappings []Mapping) ([]schedule.Period, error) {
	updated := schedule.ClonePeriods(periods)
	for i := len(mappings) - 1; i >= 0; i-- {
		m := mappings[i]
		if m.PeriodIndex < 0 || m.PeriodIndex >= len(updated) {
			return nil, fmt.Errorf("%w: mapping references period %d of %d", ErrInvalidTransaction, m.PeriodIndex, len(updated))
		}
		p := &updated[m.PeriodIndex]
		var undone money.Amount
		switch m.Action {
		case ActionPay:
			undone = p.Unpay(m.Component, m.Amount)
		case ActionUnpay:
			undone = p.Pay(m.Component, m.Amount)
		case ActionWaive:
			undone = p.Unwaive(m.Component, m.Amount)
		case ActionWriteOff:
			undone = p.Unwriteoff(m.Component, m.Amount)
		default:
			return nil, fmt.Errorf("%w: unknown mapping action %q", ErrInvalidTransaction, m.Action)
		}
		if !undone.Equal(m.Amount) {
			return nil, fmt.Errorf("%w: could only unwind %s of %s on period %d %s",
				ErrInvalidTransaction, undone.StringFixed(money.Scale), m.Amount.StringFixed(money.Scale),
				m.PeriodIndex, m.Component)
		}
	}
	return updated, nil
}

// pay fills the given component sequence installment by installment, spilling
// the remainder forward when configured.
func (pr *Processor) pay(periods []schedule.Period, tx Transaction, order Order, components []schedule.Component) ([]Mapping, money.Amount) {
	var mappings []Mapping
	remaining := tx.Amount
	for _, idx := range openPeriods(periods, order) {
		if !remaining.IsPositive() {
			break
		}
		p := &periods[idx]
		for _, c := range components {
			applied := p.Pay(c, remaining)
			if applied.IsPositive() {
				remaining = remaining.Sub(applied)
				mappings = append(mappings, newMapping(tx, idx, c, ActionPay, applied))
			}
		}
		if !order.SpillExcess {
			break
		}
	}
	return mappings, remaining
}

// waive forgives the given components in due order. Principal is never in
// the component set; Period.Waive enforces that independently.
func (pr *Processor) waive(periods []schedule.Period, tx Transaction, order Order, components []schedule.Component) ([]Mapping, money.Amount) {
	var mappings []Mapping
	remaining := tx.Amount
	for _, idx := range openPeriods(periods, order) {
		if !remaining.IsPositive() {
			break
		}
		p := &periods[idx]
		for _, c := range components {
			applied := p.Waive(c, remaining)
			if applied.IsPositive() {
				remaining = remaining.Sub(applied)
				mappings = append(mappings, newMapping(tx, idx, c, ActionWaive, applied))
			}
		}
		if !order.SpillExcess {
			break
		}
	}
	return mappings, remaining
}

// refund walks the allocation order in reverse across installments in reverse
// sequence, decrementing previously recorded paid amounts.
func (pr *Processor) refund(periods []schedule.Period, tx Transaction, order Order) ([]Mapping, money.Amount) {
	var mappings []Mapping
	remaining := tx.Amount
	indexes := paidPeriods(periods, order)
	for i := len(indexes) - 1; i >= 0 && remaining.IsPositive(); i-- {
		p := &periods[indexes[i]]
		for j := len(order.Sequence) - 1; j >= 0; j-- {
			c := order.Sequence[j]
			applied := p.Unpay(c, remaining)
			if applied.IsPositive() {
				remaining = remaining.Sub(applied)
				mappings = append(mappings, newMapping(tx, indexes[i], c, ActionUnpay, applied))
			}
		}
	}
	return mappings, remaining
}

// chargeOff writes off every outstanding component balance on every open
// period. The transaction amount is informational; the write-off always
// covers the full remainder.
func (pr *Processor) chargeOff(periods []schedule.Period, tx Transaction) []Mapping {
	var mappings []Mapping
	for idx := range periods {
		p := &periods[idx]
		for _, c := range schedule.Components {
			outstanding := p.Outstanding(c)
			if !outstanding.IsPositive() {
				continue
			}
			applied := p.WriteOff(c, outstanding)
			if applied.IsPositive() {
				mappings = append(mappings, newMapping(tx, idx, c, ActionWriteOff, applied))
			}
		}
	}
	return mappings
}

func chargeTarget(tx Transaction) (schedule.Component, error) {
	switch tx.ChargeComponent {
	case schedule.Fee, schedule.Penalty:
		return tx.ChargeComponent, nil
	}
	return "", fmt.Errorf("%w: charge payment must target FEE or PENALTY, got %q", ErrInvalidTransaction, tx.ChargeComponent)
}

func newMapping(tx Transaction, periodIndex int, c schedule.Component, action Action, amount money.Amount) Mapping {
	return Mapping{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		PeriodIndex:   periodIndex,
		Component:     c,
		Action:        action,
		Amount:        amount,
	}
}

// openPeriods returns the indexes of periods with any outstanding balance in
// the configured walking order.
func openPeriods(periods []schedule.Period, order Order) []int {
	var idx []int
	for i := range periods {
		if periods[i].TotalOutstanding().IsPositive() {
			idx = append(idx, i)
		}
	}
	sortPeriodIndexes(idx, periods, order)
	return idx
}

// paidPeriods returns the indexes of periods with any paid amount, in the
// configured walking order.
func paidPeriods(periods []schedule.Period, order Order) []int {
	var idx []int
	for i := range periods {
		for _, c := range schedule.Components {
			if periods[i].Paid(c).IsPositive() {
				idx = append(idx, i)
				break
			}
		}
	}
	sortPeriodIndexes(idx, periods, order)
	return idx
}

func sortPeriodIndexes(idx []int, periods []schedule.Period, order Order) {
	if order.ChronologicalOrder {
		sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
		return
	}
	sort.Slice(idx, func(a, b int) bool {
		if periods[idx[a]].Due.Equal(periods[idx[b]].Due) {
			return idx[a] < idx[b]
		}
		return periods[idx[a]].Due.Before(periods[idx[b]].Due)
	})
}
