package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the kind of ledger event recorded by a Reporter.
type TradeAction string

const (
	ActionBuy      TradeAction = "BUY"
	ActionSell     TradeAction = "SELL"
	ActionAssign   TradeAction = "ASSIGN"
	ActionExercise TradeAction = "EXERCISE"
	ActionExpire   TradeAction = "EXPIRE"
	ActionSplit    TradeAction = "SPLIT"
)

// TradeEvent is one ledger change: a trade, a settlement or a split
// adjustment. Contract is nil for events on the stock itself.
type TradeEvent struct {
	Date     time.Time
	Action   TradeAction
	Security Security
	Contract *Option
	Amount   int64
	Price    decimal.Decimal
}

// Instrument returns a label for the contract or the security.
func (e TradeEvent) Instrument() string {
	if e.Contract != nil {
		return e.Contract.String()
	}
	return e.Security.String()
}

// Split is a corporate action multiplying the share count on Date.
// A 5-for-1 split has Multiplier 5; a 1-for-3 reverse split has 1/3.
type Split struct {
	Date       time.Time
	Multiplier decimal.Decimal
}

// RunResult is the outcome of one simulation run.
type RunResult struct {
	Security    Security
	Start       time.Time
	End         time.Time
	Days        int
	Decisions   int
	Trades      int
	FinalClose  decimal.Decimal
	EndingValue decimal.Decimal
	Baseline    decimal.Decimal
	Fitness     decimal.Decimal
	Portfolio   *Portfolio
}

// FitnessFloat returns the fitness for consumers that score in float64.
func (r RunResult) FitnessFloat() float64 {
	return r.Fitness.InexactFloat64()
}
