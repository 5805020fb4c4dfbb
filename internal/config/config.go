// Package config defines the data structures related to configuration and
// includes functions for loading and translating the config into engine
// inputs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iwvelando/loan-engine/pkg/allocation"
	"github.com/iwvelando/loan-engine/pkg/calendar"
	"github.com/iwvelando/loan-engine/pkg/constants"
	"github.com/iwvelando/loan-engine/pkg/datetime"
	"github.com/iwvelando/loan-engine/pkg/daycount"
	"github.com/iwvelando/loan-engine/pkg/interest"
	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

// DateTimeLayout is the format expected in config files and is also the
// output date format.
const DateTimeLayout = constants.DateTimeLayout

// Configuration holds all configuration for a loan engine run.
type Configuration struct {
	Loan          Loan
	Product       Product
	Holidays      []Holiday
	Meeting       *Meeting
	Pauses        []DateRange `mapstructure:"interestPauses"`
	Disbursements []Disbursement
	Charges       []Charge
	Transactions  []Transaction
	Logging       LoggingConfig `yaml:"logging,omitempty"`
	Output        OutputConfig  `yaml:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// Loan holds the borrower-level terms a schedule is generated from.
type Loan struct {
	Principal             float64
	AnnualRate            float64
	Repayments            int
	Every                 int
	FrequencyUnit         string
	Amortization          string
	InterestMethod        string
	DaysInYear            string
	DaysInMonth           string
	PrincipalGrace        int
	InterestGrace         int
	DownPaymentPercent    float64
	SubmittedOn           string
	PrepaymentPolicy      string
	InterestRecalculation bool
}

// Product holds the product-level allocation configuration.
type Product struct {
	AllocationOrder         []string
	SpillExcess             *bool
	ChronologicalOrder      bool
	OverpaymentAsAdvance    *bool
	DefaultReschedulePolicy string
	WorkingDays             []string
}

// Holiday is a configured holiday interval with an optional per-holiday
// reschedule policy override.
type Holiday struct {
	From   string
	To     string
	Policy string
}

// Meeting pins due dates to a fixed day of the month.
type Meeting struct {
	DayOfMonth int
}

// DateRange is a from/to date pair used for interest pauses.
type DateRange struct {
	From string
	To   string
}

// Disbursement is one configured tranche.
type Disbursement struct {
	Date   string
	Amount float64
}

// Charge is a fee or penalty levied onto the installment containing its
// date, increasing that installment's due amount.
type Charge struct {
	Date      string
	Amount    float64
	Component string
}

// Transaction is one configured financial event, applied in date order.
type Transaction struct {
	Date            string
	Amount          float64
	Kind            string
	ChargeComponent string
	Reversed        bool
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	err := viper.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

// LoanTerms translates the loan section into engine terms.
func (conf *Configuration) LoanTerms() (schedule.LoanTerms, error) {
	var terms schedule.LoanTerms

	unit, err := schedule.ParseFrequency(orDefault(conf.Loan.FrequencyUnit, string(schedule.Months)))
	if err != nil {
		return terms, err
	}
	yearBasis, err := daycount.ParseYearBasis(orDefault(conf.Loan.DaysInYear, string(daycount.ActualYear)))
	if err != nil {
		return terms, err
	}
	monthBasis, err := daycount.ParseMonthBasis(orDefault(conf.Loan.DaysInMonth, string(daycount.ActualMonth)))
	if err != nil {
		return terms, err
	}

	terms = schedule.LoanTerms{
		Principal:             money.FromFloat(conf.Loan.Principal),
		AnnualRate:            money.FromFloat(conf.Loan.AnnualRate),
		Repayments:            conf.Loan.Repayments,
		Every:                 orDefaultInt(conf.Loan.Every, 1),
		Unit:                  unit,
		Amortization:          schedule.AmortizationMethod(orDefault(conf.Loan.Amortization, string(schedule.EqualInstallment))),
		Interest:              schedule.InterestMethod(orDefault(conf.Loan.InterestMethod, string(schedule.DecliningBalance))),
		Convention:            interest.Convention{Year: yearBasis, Month: monthBasis},
		PrincipalGrace:        conf.Loan.PrincipalGrace,
		InterestGrace:         conf.Loan.InterestGrace,
		DownPaymentPercent:    money.FromFloat(conf.Loan.DownPaymentPercent),
		PrepaymentPolicy:      schedule.PrepaymentPolicy(orDefault(conf.Loan.PrepaymentPolicy, string(schedule.TillPreClosureDate))),
		InterestRecalculation: conf.Loan.InterestRecalculation,
	}
	if conf.Loan.SubmittedOn != "" {
		terms.SubmittedOn, err = datetime.ParseDate(conf.Loan.SubmittedOn)
		if err != nil {
			return terms, err
		}
	}
	return terms, terms.Validate()
}

// GeneratorInputs translates the full configuration into schedule generator
// inputs.
func (conf *Configuration) GeneratorInputs() (schedule.Inputs, error) {
	var in schedule.Inputs

	terms, err := conf.LoanTerms()
	if err != nil {
		return in, err
	}
	in.Terms = terms

	for _, d := range conf.Disbursements {
		date, err := datetime.ParseDate(d.Date)
		if err != nil {
			return in, err
		}
		in.Disbursements = append(in.Disbursements, schedule.Disbursement{
			Date:   date,
			Amount: money.FromFloat(d.Amount),
		})
	}

	for _, h := range conf.Holidays {
		from, err := datetime.ParseDate(h.From)
		if err != nil {
			return in, err
		}
		to := from
		if h.To != "" {
			to, err = datetime.ParseDate(h.To)
			if err != nil {
				return in, err
			}
		}
		holiday := calendar.Holiday{From: from, To: to}
		if h.Policy != "" {
			holiday.Policy, err = calendar.ParsePolicy(h.Policy)
			if err != nil {
				return in, err
			}
		}
		in.Holidays = append(in.Holidays, holiday)
	}

	if conf.Meeting != nil {
		in.Meeting = &calendar.MeetingSchedule{DayOfMonth: conf.Meeting.DayOfMonth}
	}

	if conf.Product.DefaultReschedulePolicy != "" {
		in.DefaultPolicy, err = calendar.ParsePolicy(conf.Product.DefaultReschedulePolicy)
		if err != nil {
			return in, err
		}
	}

	if len(conf.Product.WorkingDays) > 0 {
		in.Working = calendar.WorkingDays{}
		for _, name := range conf.Product.WorkingDays {
			day, err := parseWeekday(name)
			if err != nil {
				return in, err
			}
			in.Working[day] = true
		}
	}

	for _, p := range conf.Pauses {
		from, err := datetime.ParseDate(p.From)
		if err != nil {
			return in, err
		}
		to, err := datetime.ParseDate(p.To)
		if err != nil {
			return in, err
		}
		in.Pauses = append(in.Pauses, interest.Pause{From: from, To: to})
	}

	return in, nil
}

// AllocationOrder translates the product section into an allocation order.
func (conf *Configuration) AllocationOrder() (allocation.Order, error) {
	order := allocation.DefaultOrder()
	if len(conf.Product.AllocationOrder) > 0 {
		order.Sequence = nil
		for _, name := range conf.Product.AllocationOrder {
			order.Sequence = append(order.Sequence, schedule.Component(strings.ToUpper(name)))
		}
	}
	if conf.Product.SpillExcess != nil {
		order.SpillExcess = *conf.Product.SpillExcess
	}
	order.ChronologicalOrder = conf.Product.ChronologicalOrder
	if conf.Product.OverpaymentAsAdvance != nil {
		order.OverpaymentAsAdvance = *conf.Product.OverpaymentAsAdvance
	}
	return order, order.Validate()
}

// ChargeList translates configured charges into schedule charges.
func (conf *Configuration) ChargeList() ([]schedule.Charge, error) {
	var charges []schedule.Charge
	for _, c := range conf.Charges {
		date, err := datetime.ParseDate(c.Date)
		if err != nil {
			return nil, err
		}
		charges = append(charges, schedule.Charge{
			Date:      date,
			Amount:    money.FromFloat(c.Amount),
			Component: schedule.Component(strings.ToUpper(c.Component)),
		})
	}
	return charges, nil
}

// TransactionList translates configured transactions into engine
// transactions, preserving file order.
func (conf *Configuration) TransactionList() ([]allocation.Transaction, []bool, error) {
	var (
		txs      []allocation.Transaction
		reversed []bool
	)
	for _, t := range conf.Transactions {
		date, err := datetime.ParseDate(t.Date)
		if err != nil {
			return nil, nil, err
		}
		kind, err := allocation.ParseKind(orDefault(t.Kind, string(allocation.Repayment)))
		if err != nil {
			return nil, nil, err
		}
		tx := allocation.NewTransaction(date, money.FromFloat(t.Amount), kind)
		if t.ChargeComponent != "" {
			tx.ChargeComponent = schedule.Component(strings.ToUpper(t.ChargeComponent))
		}
		txs = append(txs, tx)
		reversed = append(reversed, t.Reversed)
	}
	return txs, reversed, nil
}

// Validate performs configuration validation and returns warnings for
// conditions worth surfacing without failing the run.
func (conf *Configuration) Validate() ([]string, error) {
	var warnings []string

	if len(conf.Disbursements) == 0 {
		return warnings, fmt.Errorf("at least one disbursement must be configured")
	}
	if _, err := conf.GeneratorInputs(); err != nil {
		return warnings, err
	}
	if _, err := conf.AllocationOrder(); err != nil {
		return warnings, err
	}
	if _, err := conf.ChargeList(); err != nil {
		return warnings, err
	}
	txs, _, err := conf.TransactionList()
	if err != nil {
		return warnings, err
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.Before(txs[i-1].Date) {
			warnings = append(warnings, fmt.Sprintf("transaction %d dated %s precedes transaction %d dated %s; transactions are applied in file order",
				i+1, datetime.FormatDate(txs[i].Date), i, datetime.FormatDate(txs[i-1].Date)))
		}
	}
	if conf.Meeting != nil && (conf.Meeting.DayOfMonth < 1 || conf.Meeting.DayOfMonth > 31) {
		return warnings, fmt.Errorf("meeting dayOfMonth %d must be in [1, 31]", conf.Meeting.DayOfMonth)
	}
	return warnings, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToUpper(name) {
	case "SUNDAY":
		return time.Sunday, nil
	case "MONDAY":
		return time.Monday, nil
	case "TUESDAY":
		return time.Tuesday, nil
	case "WEDNESDAY":
		return time.Wednesday, nil
	case "THURSDAY":
		return time.Thursday, nil
	case "FRIDAY":
		return time.Friday, nil
	case "SATURDAY":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
