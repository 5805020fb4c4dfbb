// Package output provides utilities for formatting and displaying schedule
// results.
package output

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iwvelando/loan-engine/pkg/datetime"
	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/prepayment"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(periods []schedule.Period, advance money.Amount, payoff *prepayment.Quote) {
	p := message.NewPrinter(language.English)
	fmt.Printf("Idx | Due date   | Principal   | Interest  | Fees     | Penalty  | Paid        | Outstanding\n")
	fmt.Printf("___ | ________   | _________   | ________  | ____     | _______  | ____        | ___________\n")
	for _, period := range periods {
		paid := money.Zero
		for _, c := range schedule.Components {
			paid = paid.Add(period.Paid(c))
		}
		_, _ = p.Printf("%3d | %s | $%s | $%s | $%s | $%s | $%s | $%s\n",
			period.Index,
			datetime.FormatDate(period.Due),
			period.DueAmount(schedule.Principal).StringFixed(money.Scale),
			period.DueAmount(schedule.Interest).StringFixed(money.Scale),
			period.DueAmount(schedule.Fee).StringFixed(money.Scale),
			period.DueAmount(schedule.Penalty).StringFixed(money.Scale),
			paid.StringFixed(money.Scale),
			period.OutstandingAfter.StringFixed(money.Scale),
		)
	}
	if advance.IsPositive() {
		_, _ = p.Printf("Advance credit held: $%s\n", advance.StringFixed(money.Scale))
	}
	if payoff != nil {
		_, _ = p.Printf("Payoff: principal $%s + interest $%s = $%s\n",
			payoff.Principal.StringFixed(money.Scale),
			payoff.Interest.StringFixed(money.Scale),
			payoff.Total.StringFixed(money.Scale),
		)
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(periods []schedule.Period) {
	fmt.Printf(`"index","from","due","disbursed","principal","interest","fee","penalty","paid","waived","outstanding_after"`)
	fmt.Printf("\n")
	for _, period := range periods {
		paid := money.Zero
		waived := money.Zero
		for _, c := range schedule.Components {
			paid = paid.Add(period.Paid(c))
			waived = waived.Add(period.Waived(c))
		}
		fmt.Printf(`"%d","%s","%s","%s","%s","%s","%s","%s","%s","%s","%s"`,
			period.Index,
			datetime.FormatDate(period.From),
			datetime.FormatDate(period.Due),
			period.Disbursed.StringFixed(money.Scale),
			period.DueAmount(schedule.Principal).StringFixed(money.Scale),
			period.DueAmount(schedule.Interest).StringFixed(money.Scale),
			period.DueAmount(schedule.Fee).StringFixed(money.Scale),
			period.DueAmount(schedule.Penalty).StringFixed(money.Scale),
			paid.StringFixed(money.Scale),
			waived.StringFixed(money.Scale),
			period.OutstandingAfter.StringFixed(money.Scale),
		)
		fmt.Printf("\n")
	}
}
