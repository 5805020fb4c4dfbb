package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwvelando/loan-engine/pkg/datetime"
	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

// installment builds a period with the given dues, indexed from 1.
func installment(index int, due string, penalty, fee, interestDue, principal float64) schedule.Period {
	d := datetime.MustParseDate(due)
	p := schedule.NewPeriod(index, d.AddDate(0, -1, 0), d)
	p.SetDue(schedule.Penalty, money.FromFloat(penalty))
	p.SetDue(schedule.Fee, money.FromFloat(fee))
	p.SetDue(schedule.Interest, money.FromFloat(interestDue))
	p.SetDue(schedule.Principal, money.FromFloat(principal))
	return p
}

func amountEqual(t *testing.T, expected string, got money.Amount, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, expected, got.StringFixed(money.Scale), msgAndArgs...)
}

func TestRepaymentFollowsAllocationOrder(t *testing.T) {
	// 100.00 against penalty 10 / fee 15 / interest 25 / principal 80:
	// charges and interest settle in full, the remaining 50 goes to
	// principal.
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(100), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	p := res.Periods[0]
	amountEqual(t, "10.00", p.Paid(schedule.Penalty))
	amountEqual(t, "15.00", p.Paid(schedule.Fee))
	amountEqual(t, "25.00", p.Paid(schedule.Interest))
	amountEqual(t, "50.00", p.Paid(schedule.Principal))
	amountEqual(t, "30.00", p.Outstanding(schedule.Principal))
	amountEqual(t, "0.00", res.Unallocated)

	require.Len(t, res.Mappings, 4)
	for _, m := range res.Mappings {
		assert.Equal(t, tx.ID, m.TransactionID)
		assert.Equal(t, ActionPay, m.Action)
		assert.True(t, m.Amount.IsPositive())
	}
	assert.Equal(t, schedule.Penalty, res.Mappings[0].Component)
	assert.Equal(t, schedule.Principal, res.Mappings[3].Component)
}

func TestRepaymentSettlesInstallmentExactly(t *testing.T) {
	// 100.00 against penalty 10 / fee 15 / interest 25 / principal 50
	// lands on exactly zero: every bucket fully paid, nothing left over.
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 50)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(100), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	p := res.Periods[0]
	assert.True(t, p.Settled())
	amountEqual(t, "10.00", p.Paid(schedule.Penalty))
	amountEqual(t, "15.00", p.Paid(schedule.Fee))
	amountEqual(t, "25.00", p.Paid(schedule.Interest))
	amountEqual(t, "50.00", p.Paid(schedule.Principal))
	amountEqual(t, "0.00", p.Outstanding(schedule.Principal))
	amountEqual(t, "0.00", res.Unallocated)
	require.Len(t, res.Mappings, 4)
}

func TestRepaymentSpillsIntoNextInstallment(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 0, 0, 10, 90),
		installment(2, "2023-03-01", 0, 0, 9, 91),
	}

	tx := NewTransaction(datetime.MustParseDate("2023-02-15"), money.New(150), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	assert.True(t, res.Periods[0].Settled())
	amountEqual(t, "9.00", res.Periods[1].Paid(schedule.Interest))
	amountEqual(t, "41.00", res.Periods[1].Paid(schedule.Principal))
	amountEqual(t, "50.00", res.Periods[1].Outstanding(schedule.Principal))
}

func TestRepaymentWithoutSpillStopsAtFirstInstallment(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 0, 0, 10, 90),
		installment(2, "2023-03-01", 0, 0, 9, 91),
	}

	order := DefaultOrder()
	order.SpillExcess = false
	tx := NewTransaction(datetime.MustParseDate("2023-02-15"), money.New(150), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, order)
	require.NoError(t, err)

	assert.True(t, res.Periods[0].Settled())
	assert.True(t, money.IsZero(res.Periods[1].Paid(schedule.Interest)))
	amountEqual(t, "50.00", res.Unallocated)
}

func TestOverpaymentHeldAsAdvanceCredit(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 0, 0, 10, 90)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(120), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	assert.True(t, res.Periods[0].Settled())
	amountEqual(t, "20.00", res.Unallocated)
}

func TestDueDateOrderVersusChronologicalOrder(t *testing.T) {
	// Period 1 was holiday-shifted past period 2's due date.
	shifted := installment(1, "2023-03-05", 0, 0, 10, 0)
	regular := installment(2, "2023-03-01", 0, 0, 20, 0)
	periods := []schedule.Period{shifted, regular}

	tx := NewTransaction(datetime.MustParseDate("2023-03-10"), money.New(10), Repayment)

	// Due-date order reaches period 2 first.
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)
	amountEqual(t, "10.00", res.Periods[1].Paid(schedule.Interest))
	assert.True(t, money.IsZero(res.Periods[0].Paid(schedule.Interest)))

	// Chronological order walks by period index instead.
	order := DefaultOrder()
	order.ChronologicalOrder = true
	res, err = NewProcessor(nil).Apply(periods, tx, order)
	require.NoError(t, err)
	amountEqual(t, "10.00", res.Periods[0].Paid(schedule.Interest))
	assert.True(t, money.IsZero(res.Periods[1].Paid(schedule.Interest)))
}

func TestCustomSequencePrincipalFirst(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	order := Order{
		Sequence:    []schedule.Component{schedule.Principal, schedule.Interest, schedule.Fee, schedule.Penalty},
		SpillExcess: true,
	}
	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(100), Repayment)
	res, err := NewProcessor(nil).Apply(periods, tx, order)
	require.NoError(t, err)

	p := res.Periods[0]
	amountEqual(t, "80.00", p.Paid(schedule.Principal))
	amountEqual(t, "20.00", p.Paid(schedule.Interest))
	assert.True(t, money.IsZero(p.Paid(schedule.Fee)))
	assert.True(t, money.IsZero(p.Paid(schedule.Penalty)))
}

func TestOrderValidation(t *testing.T) {
	tests := []struct {
		name     string
		sequence []schedule.Component
	}{
		{"Missing component", []schedule.Component{schedule.Penalty, schedule.Fee, schedule.Interest}},
		{"Repeated component", []schedule.Component{schedule.Penalty, schedule.Penalty, schedule.Interest, schedule.Principal}},
		{"Unknown component", []schedule.Component{schedule.Penalty, schedule.Fee, schedule.Interest, schedule.Component("ESCROW")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Order{Sequence: tt.sequence}.Validate()
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestInterestWaiverNeverTouchesPrincipal(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 5, 0, 25, 80)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(100), InterestWaiver)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	p := res.Periods[0]
	amountEqual(t, "25.00", p.Waived(schedule.Interest))
	assert.True(t, money.IsZero(p.Waived(schedule.Penalty)))
	assert.True(t, money.IsZero(p.Waived(schedule.Principal)))
	amountEqual(t, "80.00", p.Outstanding(schedule.Principal))
	amountEqual(t, "75.00", res.Unallocated)
}

func TestChargeWaiverCoversPenaltyAndFee(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 10, 15, 25, 80),
		installment(2, "2023-03-01", 5, 0, 24, 81),
	}

	tx := NewTransaction(datetime.MustParseDate("2023-03-01"), money.New(28), ChargeWaiver)
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	amountEqual(t, "10.00", res.Periods[0].Waived(schedule.Penalty))
	amountEqual(t, "15.00", res.Periods[0].Waived(schedule.Fee))
	amountEqual(t, "3.00", res.Periods[1].Waived(schedule.Penalty))
	assert.True(t, money.IsZero(res.Periods[0].Waived(schedule.Interest)))
	amountEqual(t, "0.00", res.Unallocated)
}

func TestChargePaymentTargetsSingleBucket(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(12), ChargePayment)
	tx.ChargeComponent = schedule.Fee
	res, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	require.NoError(t, err)

	p := res.Periods[0]
	amountEqual(t, "12.00", p.Paid(schedule.Fee))
	assert.True(t, money.IsZero(p.Paid(schedule.Penalty)))
	assert.True(t, money.IsZero(p.Paid(schedule.Interest)))
}

func TestChargePaymentRejectsNonChargeTarget(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	tx := NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(12), ChargePayment)
	tx.ChargeComponent = schedule.Principal
	_, err := NewProcessor(nil).Apply(periods, tx, DefaultOrder())
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestRefundUnwindsMostRecentPaymentsFirst(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 0, 0, 10, 90),
		installment(2, "2023-03-01", 0, 0, 9, 91),
	}
	pr := NewProcessor(nil)

	paid, err := pr.Apply(periods, NewTransaction(datetime.MustParseDate("2023-03-01"), money.New(150), Repayment), DefaultOrder())
	require.NoError(t, err)

	res, err := pr.Apply(paid.Periods, NewTransaction(datetime.MustParseDate("2023-03-10"), money.New(60), Refund), DefaultOrder())
	require.NoError(t, err)

	// The later installment gives back its 41 principal and 9 interest
	// first, then the first installment surrenders 10 of its principal.
	amountEqual(t, "0.00", res.Periods[1].Paid(schedule.Principal))
	amountEqual(t, "0.00", res.Periods[1].Paid(schedule.Interest))
	amountEqual(t, "80.00", res.Periods[0].Paid(schedule.Principal))
	amountEqual(t, "10.00", res.Periods[0].Paid(schedule.Interest))
	amountEqual(t, "0.00", res.Unallocated)
}

func TestChargeOffWritesOffEverythingOutstanding(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 10, 15, 25, 80),
		installment(2, "2023-03-01", 0, 0, 24, 81),
	}
	pr := NewProcessor(nil)

	paid, err := pr.Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(50), Repayment), DefaultOrder())
	require.NoError(t, err)

	res, err := pr.Apply(paid.Periods, NewTransaction(datetime.MustParseDate("2023-04-01"), money.Zero, ChargeOff), DefaultOrder())
	require.NoError(t, err)

	total := money.Zero
	for _, p := range res.Periods {
		assert.True(t, p.Settled())
		for _, c := range schedule.Components {
			total = total.Add(p.WrittenOff(c))
		}
	}
	// 235 total due minus the 50 already paid.
	amountEqual(t, "185.00", total)
}

func TestZeroAmountIsNoOp(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	res, err := NewProcessor(nil).Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.Zero, Repayment), DefaultOrder())
	require.NoError(t, err)
	assert.Empty(t, res.Mappings)
	assert.True(t, money.IsZero(res.Periods[0].Paid(schedule.Penalty)))
}

func TestNegativeAmountRejected(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	_, err := NewProcessor(nil).Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(-5), Repayment), DefaultOrder())
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 15, 25, 80)}

	_, err := NewProcessor(nil).Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(100), Repayment), DefaultOrder())
	require.NoError(t, err)
	assert.True(t, money.IsZero(periods[0].Paid(schedule.Penalty)))
	amountEqual(t, "130.00", periods[0].TotalOutstanding())
}

func TestReverseRestoresPriorState(t *testing.T) {
	periods := []schedule.Period{
		installment(1, "2023-02-01", 10, 15, 25, 80),
		installment(2, "2023-03-01", 0, 0, 24, 81),
	}
	pr := NewProcessor(nil)

	res, err := pr.Apply(periods, NewTransaction(datetime.MustParseDate("2023-03-01"), money.New(175), Repayment), DefaultOrder())
	require.NoError(t, err)
	require.NotEmpty(t, res.Mappings)

	restored, err := pr.Reverse(res.Periods, res.Mappings)
	require.NoError(t, err)

	for i := range periods {
		for _, c := range schedule.Components {
			assert.True(t, restored[i].Paid(c).Equal(periods[i].Paid(c)),
				"period %d %s paid %s, expected %s", i, c, restored[i].Paid(c), periods[i].Paid(c))
			assert.True(t, restored[i].Outstanding(c).Equal(periods[i].Outstanding(c)),
				"period %d %s outstanding changed", i, c)
		}
	}
}

func TestReverseWaiverAndChargeOff(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 10, 0, 25, 80)}
	pr := NewProcessor(nil)

	waived, err := pr.Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(25), InterestWaiver), DefaultOrder())
	require.NoError(t, err)

	charged, err := pr.Apply(waived.Periods, NewTransaction(datetime.MustParseDate("2023-03-01"), money.Zero, ChargeOff), DefaultOrder())
	require.NoError(t, err)
	assert.True(t, charged.Periods[0].Settled())

	// Unwind the charge-off, then the waiver.
	afterChargeOff, err := pr.Reverse(charged.Periods, charged.Mappings)
	require.NoError(t, err)
	amountEqual(t, "90.00", afterChargeOff[0].TotalOutstanding())

	restored, err := pr.Reverse(afterChargeOff, waived.Mappings)
	require.NoError(t, err)
	amountEqual(t, "115.00", restored[0].TotalOutstanding())
	assert.True(t, money.IsZero(restored[0].Waived(schedule.Interest)))
}

func TestReverseFailsWhenStateAlreadyChanged(t *testing.T) {
	periods := []schedule.Period{installment(1, "2023-02-01", 0, 0, 10, 90)}
	pr := NewProcessor(nil)

	res, err := pr.Apply(periods, NewTransaction(datetime.MustParseDate("2023-02-01"), money.New(50), Repayment), DefaultOrder())
	require.NoError(t, err)

	// A refund already pulled the payment back out; reversing the original
	// transaction can no longer unwind the full amount.
	refunded, err := pr.Apply(res.Periods, NewTransaction(datetime.MustParseDate("2023-02-10"), money.New(50), Refund), DefaultOrder())
	require.NoError(t, err)

	_, err = pr.Reverse(refunded.Periods, res.Mappings)
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"REPAYMENT", "INTEREST_WAIVER", "CHARGE_WAIVER", "REFUND", "CHARGE_PAYMENT", "CHARGE_OFF"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}
	_, err := ParseKind("DISBURSEMENT")
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}
