package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/loan-engine/pkg/allocation"
	"github.com/iwvelando/loan-engine/pkg/calendar"
	"github.com/iwvelando/loan-engine/pkg/daycount"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

const sampleConfig = `loan:
  principal: 10000
  annualRate: 12
  repayments: 12
  frequencyUnit: MONTHS
  amortization: EQUAL_PRINCIPAL
  interestMethod: DECLINING_BALANCE
  daysInYear: "365"
  daysInMonth: ACTUAL
product:
  allocationOrder:
    - PENALTY
    - FEE
    - INTEREST
    - PRINCIPAL
  defaultReschedulePolicy: MOVE_TO_NEXT_WORKING_DAY
  workingDays:
    - MONDAY
    - TUESDAY
    - WEDNESDAY
    - THURSDAY
    - FRIDAY
holidays:
  - from: "2023-03-15"
disbursements:
  - date: "2023-01-01"
    amount: 10000
charges:
  - date: "2023-02-15"
    amount: 100
    component: FEE
transactions:
  - date: "2023-02-01"
    amount: 931.96
  - date: "2023-03-01"
    amount: 100
    kind: CHARGE_PAYMENT
    chargeComponent: FEE
logging:
  level: debug
  format: console
output:
  format: csv
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	if _, err := LoadConfiguration("nonexistent.yaml"); err == nil {
		t.Errorf("LoadConfiguration() expected error for missing file but got none")
	}

	conf, err := LoadConfiguration(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Loan.Principal != 10000 {
		t.Errorf("principal = %v, expected 10000", conf.Loan.Principal)
	}
	if conf.Loan.Amortization != "EQUAL_PRINCIPAL" {
		t.Errorf("amortization = %q, expected EQUAL_PRINCIPAL", conf.Loan.Amortization)
	}
	if len(conf.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(conf.Transactions))
	}
	if len(conf.Charges) != 1 || conf.Charges[0].Component != "FEE" {
		t.Errorf("charges not loaded: %+v", conf.Charges)
	}
	if conf.Logging.Level != "debug" {
		t.Errorf("logging level = %q, expected debug", conf.Logging.Level)
	}
	if conf.Output.Format != "csv" {
		t.Errorf("output format = %q, expected csv", conf.Output.Format)
	}
}

func TestLoanTermsDefaults(t *testing.T) {
	conf := &Configuration{
		Loan: Loan{
			Principal:  5000,
			AnnualRate: 10,
			Repayments: 6,
		},
	}
	terms, err := conf.LoanTerms()
	if err != nil {
		t.Fatalf("LoanTerms() error = %v", err)
	}
	if terms.Unit != schedule.Months {
		t.Errorf("unit = %q, expected MONTHS default", terms.Unit)
	}
	if terms.Every != 1 {
		t.Errorf("every = %d, expected 1 default", terms.Every)
	}
	if terms.Amortization != schedule.EqualInstallment {
		t.Errorf("amortization = %q, expected EQUAL_INSTALLMENT default", terms.Amortization)
	}
	if terms.Interest != schedule.DecliningBalance {
		t.Errorf("interest method = %q, expected DECLINING_BALANCE default", terms.Interest)
	}
	if terms.Convention.Year != daycount.ActualYear {
		t.Errorf("year basis = %q, expected ACTUAL default", terms.Convention.Year)
	}
	if terms.PrepaymentPolicy != schedule.TillPreClosureDate {
		t.Errorf("prepayment policy = %q, expected TILL_PRE_CLOSURE_DATE default", terms.PrepaymentPolicy)
	}
}

func TestLoanTermsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		loan Loan
	}{
		{"Zero principal", Loan{AnnualRate: 10, Repayments: 6}},
		{"No repayments", Loan{Principal: 5000, AnnualRate: 10}},
		{"Bad frequency unit", Loan{Principal: 5000, AnnualRate: 10, Repayments: 6, FrequencyUnit: "QUARTERS"}},
		{"Bad day count", Loan{Principal: 5000, AnnualRate: 10, Repayments: 6, DaysInYear: "366"}},
		{"Bad submitted date", Loan{Principal: 5000, AnnualRate: 10, Repayments: 6, SubmittedOn: "01/01/2023"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &Configuration{Loan: tt.loan}
			if _, err := conf.LoanTerms(); err == nil {
				t.Errorf("LoanTerms() expected error but got none")
			}
		})
	}
}

func TestGeneratorInputsTranslation(t *testing.T) {
	conf := &Configuration{
		Loan: Loan{Principal: 10000, AnnualRate: 12, Repayments: 12},
		Product: Product{
			DefaultReschedulePolicy: "MOVE_TO_PREVIOUS_WORKING_DAY",
			WorkingDays:             []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"},
		},
		Holidays: []Holiday{
			{From: "2023-03-15"},
			{From: "2023-04-01", To: "2023-04-03", Policy: "RESCHEDULE_FUTURE_INSTALLMENTS"},
		},
		Meeting: &Meeting{DayOfMonth: 7},
		Pauses: []DateRange{
			{From: "2023-06-01", To: "2023-06-10"},
		},
		Disbursements: []Disbursement{
			{Date: "2023-01-01", Amount: 10000},
		},
	}

	in, err := conf.GeneratorInputs()
	if err != nil {
		t.Fatalf("GeneratorInputs() error = %v", err)
	}

	if len(in.Disbursements) != 1 || in.Disbursements[0].Amount.StringFixed(2) != "10000.00" {
		t.Errorf("disbursements not translated: %+v", in.Disbursements)
	}
	if len(in.Holidays) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(in.Holidays))
	}
	// Single-date holiday: To defaults to From.
	if !in.Holidays[0].To.Equal(in.Holidays[0].From) {
		t.Errorf("single-date holiday To = %v, expected %v", in.Holidays[0].To, in.Holidays[0].From)
	}
	if in.Holidays[1].Policy != calendar.RescheduleFutureInstallments {
		t.Errorf("holiday policy = %q", in.Holidays[1].Policy)
	}
	if in.DefaultPolicy != calendar.PreviousWorkingDay {
		t.Errorf("default policy = %q", in.DefaultPolicy)
	}
	if in.Meeting == nil || in.Meeting.DayOfMonth != 7 {
		t.Errorf("meeting schedule not translated: %+v", in.Meeting)
	}
	if len(in.Pauses) != 1 {
		t.Fatalf("expected 1 pause, got %d", len(in.Pauses))
	}
	if !in.Working[time.Saturday] || in.Working[time.Sunday] {
		t.Errorf("working days not translated: %+v", in.Working)
	}
}

func TestAllocationOrderTranslation(t *testing.T) {
	spill := false
	conf := &Configuration{
		Product: Product{
			AllocationOrder:    []string{"interest", "penalty", "fee", "principal"},
			SpillExcess:        &spill,
			ChronologicalOrder: true,
		},
	}
	order, err := conf.AllocationOrder()
	if err != nil {
		t.Fatalf("AllocationOrder() error = %v", err)
	}
	if order.Sequence[0] != schedule.Interest {
		t.Errorf("sequence[0] = %q, expected INTEREST", order.Sequence[0])
	}
	if order.SpillExcess {
		t.Errorf("spillExcess should be overridden to false")
	}
	if !order.ChronologicalOrder {
		t.Errorf("chronologicalOrder should be true")
	}
	if !order.OverpaymentAsAdvance {
		t.Errorf("overpaymentAsAdvance should keep its default")
	}

	conf.Product.AllocationOrder = []string{"interest", "penalty"}
	if _, err := conf.AllocationOrder(); err == nil {
		t.Errorf("AllocationOrder() expected error for incomplete sequence")
	}
}

func TestChargeListTranslation(t *testing.T) {
	conf := &Configuration{
		Charges: []Charge{
			{Date: "2023-02-15", Amount: 100, Component: "fee"},
			{Date: "2023-03-15", Amount: 10, Component: "PENALTY"},
		},
	}
	charges, err := conf.ChargeList()
	if err != nil {
		t.Fatalf("ChargeList() error = %v", err)
	}
	if len(charges) != 2 {
		t.Fatalf("expected 2 charges, got %d", len(charges))
	}
	if charges[0].Component != schedule.Fee {
		t.Errorf("component = %q, expected FEE", charges[0].Component)
	}
	if charges[1].Amount.StringFixed(2) != "10.00" {
		t.Errorf("amount = %s, expected 10.00", charges[1].Amount)
	}

	conf.Charges = append(conf.Charges, Charge{Date: "15/02/2023", Amount: 5, Component: "FEE"})
	if _, err := conf.ChargeList(); err == nil {
		t.Errorf("ChargeList() expected error for bad date")
	}
}

func TestTransactionListTranslation(t *testing.T) {
	conf := &Configuration{
		Transactions: []Transaction{
			{Date: "2023-02-01", Amount: 931.96},
			{Date: "2023-03-01", Amount: 100, Kind: "CHARGE_PAYMENT", ChargeComponent: "fee"},
			{Date: "2023-04-01", Amount: 50, Kind: "REFUND", Reversed: true},
		},
	}
	txs, reversed, err := conf.TransactionList()
	if err != nil {
		t.Fatalf("TransactionList() error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0].Kind != allocation.Repayment {
		t.Errorf("kind = %q, expected REPAYMENT default", txs[0].Kind)
	}
	if txs[1].ChargeComponent != schedule.Fee {
		t.Errorf("charge component = %q, expected FEE", txs[1].ChargeComponent)
	}
	if !reversed[2] || reversed[0] || reversed[1] {
		t.Errorf("reversed flags = %v", reversed)
	}
	if txs[0].ID == txs[1].ID {
		t.Errorf("transactions should receive distinct IDs")
	}

	conf.Transactions = append(conf.Transactions, Transaction{Date: "2023-05-01", Kind: "DISBURSEMENT"})
	if _, _, err := conf.TransactionList(); err == nil {
		t.Errorf("TransactionList() expected error for unknown kind")
	}
}

func TestValidate(t *testing.T) {
	base := Configuration{
		Loan:          Loan{Principal: 10000, AnnualRate: 12, Repayments: 12},
		Disbursements: []Disbursement{{Date: "2023-01-01", Amount: 10000}},
	}

	t.Run("Valid configuration", func(t *testing.T) {
		conf := base
		warnings, err := conf.Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("unexpected warnings: %v", warnings)
		}
	})

	t.Run("Missing disbursements", func(t *testing.T) {
		conf := base
		conf.Disbursements = nil
		if _, err := conf.Validate(); err == nil {
			t.Errorf("Validate() expected error for missing disbursements")
		}
	})

	t.Run("Out-of-order transactions warn", func(t *testing.T) {
		conf := base
		conf.Transactions = []Transaction{
			{Date: "2023-03-01", Amount: 100},
			{Date: "2023-02-01", Amount: 100},
		}
		warnings, err := conf.Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if len(warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", warnings)
		}
	})

	t.Run("Bad meeting day", func(t *testing.T) {
		conf := base
		conf.Meeting = &Meeting{DayOfMonth: 32}
		if _, err := conf.Validate(); err == nil {
			t.Errorf("Validate() expected error for meeting day 32")
		}
	})
}
