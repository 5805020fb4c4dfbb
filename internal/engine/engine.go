// Package engine orchestrates a full loan run: schedule generation,
// transaction replay through the allocator, and an optional payoff quote.
// The caller owns persistence and locking; the engine works purely on the
// in-memory inputs it is handed.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/loan-engine/internal/config"
	"github.com/iwvelando/loan-engine/pkg/allocation"
	"github.com/iwvelando/loan-engine/pkg/datetime"
	"github.com/iwvelando/loan-engine/pkg/money"
	"github.com/iwvelando/loan-engine/pkg/prepayment"
	"github.com/iwvelando/loan-engine/pkg/schedule"
)

// Engine wires the schedule generator, allocation processor, and payoff
// calculator together.
type Engine struct {
	logger    *zap.Logger
	generator *schedule.Generator
	processor *allocation.Processor
	payoff    *prepayment.Calculator
}

// New creates an engine. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:    logger,
		generator: schedule.NewGenerator(logger),
		processor: allocation.NewProcessor(logger),
		payoff:    prepayment.NewCalculator(logger),
	}
}

// Result is the outcome of one engine run.
type Result struct {
	Periods       []schedule.Period
	Mappings      []allocation.Mapping
	AdvanceCredit money.Amount
	Payoff        *prepayment.Quote
}

// Run generates the schedule, replays the configured transactions in order,
// and computes a payoff quote for payoffDate when one is given.
func (e *Engine) Run(conf *config.Configuration, now time.Time, payoffDate string) (*Result, error) {
	warnings, err := conf.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		e.logger.Warn(w, zap.String("op", "engine.Run"))
	}

	inputs, err := conf.GeneratorInputs()
	if err != nil {
		return nil, err
	}
	order, err := conf.AllocationOrder()
	if err != nil {
		return nil, err
	}
	transactions, reversals, err := conf.TransactionList()
	if err != nil {
		return nil, err
	}

	periods, err := e.generator.Generate(inputs)
	if err != nil {
		return nil, err
	}

	charges, err := conf.ChargeList()
	if err != nil {
		return nil, err
	}
	if err := schedule.LevyCharges(periods, charges); err != nil {
		return nil, err
	}

	result := &Result{AdvanceCredit: money.Zero}
	var lastTransaction time.Time
	for i, tx := range transactions {
		if tx.Date.After(now) {
			return nil, fmt.Errorf("%w: transaction %d dated %s is in the future",
				allocation.ErrInvalidTransaction, i+1, datetime.FormatDate(tx.Date))
		}
		if tx.Date.Before(lastTransaction) {
			return nil, fmt.Errorf("%w: transaction %d dated %s precedes the last transaction on %s",
				allocation.ErrInvalidTransaction, i+1, datetime.FormatDate(tx.Date), datetime.FormatDate(lastTransaction))
		}

		applied, err := e.processor.Apply(periods, tx, order)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		periods = applied.Periods
		lastTransaction = tx.Date

		if reversals[i] {
			// A reversal is a new event that unwinds the prior allocations;
			// the original transaction itself stays immutable.
			periods, err = e.processor.Reverse(periods, applied.Mappings)
			if err != nil {
				return nil, fmt.Errorf("reversing transaction %d: %w", i+1, err)
			}
			e.logger.Debug(fmt.Sprintf("reversed transaction %d dated %s", i+1, datetime.FormatDate(tx.Date)),
				zap.String("op", "engine.Run"),
			)
			continue
		}

		result.Mappings = append(result.Mappings, applied.Mappings...)
		if applied.Unallocated.IsPositive() {
			if !order.OverpaymentAsAdvance {
				return nil, fmt.Errorf("%w: transaction %d over-pays by %s",
					allocation.ErrInvalidTransaction, i+1, applied.Unallocated.StringFixed(money.Scale))
			}
			result.AdvanceCredit = result.AdvanceCredit.Add(applied.Unallocated)
			e.logger.Debug(fmt.Sprintf("holding %s as advance credit", applied.Unallocated.StringFixed(money.Scale)),
				zap.String("op", "engine.Run"),
			)
		}
	}
	result.Periods = periods

	if payoffDate != "" {
		asOf, err := datetime.ParseDate(payoffDate)
		if err != nil {
			return nil, err
		}
		quote, err := e.payoff.Calculate(periods, inputs.Terms, asOf, prepayment.Options{
			Now:             now,
			LastTransaction: lastTransaction,
			Pauses:          inputs.Pauses,
		})
		if err != nil {
			return nil, err
		}
		result.Payoff = &quote
	}

	e.logger.Debug("run complete",
		zap.String("op", "engine.Run"),
		zap.Int("periods", len(result.Periods)),
		zap.Int("mappings", len(result.Mappings)),
	)
	return result, nil
}
