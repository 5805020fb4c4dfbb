package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/loan-engine/pkg/money"
)

// ErrInvalidCharge indicates a charge that cannot be levied onto the
// schedule.
var ErrInvalidCharge = errors.New("invalid charge")

// Charge is a fee or penalty levied onto an existing installment, increasing
// its due amount before any allocation runs.
type Charge struct {
	Date      time.Time
	Amount    money.Amount
	Component Component
}

// LevyCharges adds each charge to the first repayment period due on or after
// the charge date; a charge dated past the final due date lands on the last
// repayment period. Disbursement and down-payment rows never carry charges.
func LevyCharges(periods []Period, charges []Charge) error {
	for _, ch := range charges {
		switch ch.Component {
		case Fee, Penalty:
		default:
			return fmt.Errorf("%w: component must be FEE or PENALTY, got %q", ErrInvalidCharge, ch.Component)
		}
		if !ch.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidCharge, ch.Amount.StringFixed(money.Scale))
		}

		target := -1
		for i := range periods {
			if periods[i].Due.Equal(periods[i].From) {
				continue
			}
			target = i
			if !periods[i].Due.Before(ch.Date) {
				break
			}
		}
		if target < 0 {
			return fmt.Errorf("%w: no repayment period to carry the charge dated %s",
				ErrInvalidCharge, ch.Date.Format("2006-01-02"))
		}
		periods[target].AddDue(ch.Component, money.Round(ch.Amount))
	}
	return nil
}
