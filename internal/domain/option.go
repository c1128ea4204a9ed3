package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContractMultiplier is the number of shares one option contract controls.
const ContractMultiplier = 100

var hundred = decimal.NewFromInt(ContractMultiplier)

// Direction is the side of an option contract.
type Direction uint8

const (
	Call Direction = iota + 1
	Put
)

// ParseDirection accepts "call" or "put" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, fmt.Errorf("domain.ParseDirection: unknown direction %q", s)
}

func (d Direction) String() string {
	switch d {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return "unknown"
}

// Option is the identity of an option contract. It is a value type: two
// contracts are the same contract iff direction, underlying, strike and
// expiration match. Market data lives in Snapshot, never here.
type Option struct {
	Direction  Direction
	Underlying Security
	Strike     decimal.Decimal
	Expiration time.Time
}

// NewOption builds a contract identity, normalizing the expiration to a date.
func NewOption(dir Direction, underlying Security, strike decimal.Decimal, expiration time.Time) Option {
	return Option{
		Direction:  dir,
		Underlying: underlying,
		Strike:     strike,
		Expiration: Day(expiration),
	}
}

// ContractKey is the comparable form of an Option, usable as a map key.
type ContractKey struct {
	Direction  Direction
	Symbol     string
	Strike     string
	Expiration string
}

// Key returns the comparable identity of the contract.
func (o Option) Key() ContractKey {
	return ContractKey{
		Direction:  o.Direction,
		Symbol:     o.Underlying.Symbol,
		Strike:     strikeKey(o.Strike),
		Expiration: dateKey(o.Expiration),
	}
}

// Equal reports whether both options identify the same contract.
func (o Option) Equal(other Option) bool {
	return o.Key() == other.Key()
}

// Expired reports whether the contract has reached its expiration on asOf.
// A contract expiring today is expired.
func (o Option) Expired(asOf time.Time) bool {
	return !Day(o.Expiration).After(Day(asOf))
}

// ITM reports whether the contract is in the money at the underlying price.
func (o Option) ITM(underlying decimal.Decimal) bool {
	switch o.Direction {
	case Call:
		return underlying.GreaterThan(o.Strike)
	case Put:
		return underlying.LessThan(o.Strike)
	}
	return false
}

// Intrinsic is the exercise value per share at the underlying price.
func (o Option) Intrinsic(underlying decimal.Decimal) decimal.Decimal {
	var v decimal.Decimal
	switch o.Direction {
	case Call:
		v = underlying.Sub(o.Strike)
	case Put:
		v = o.Strike.Sub(underlying)
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Extrinsic is the time value of the premium: premium minus intrinsic value.
func (o Option) Extrinsic(premium, underlying decimal.Decimal) decimal.Decimal {
	return premium.Sub(o.Intrinsic(underlying))
}

// StrikeDecimals is the precision strikes are quoted at.
const StrikeDecimals = 2

// Adjusted returns a new contract identity after a split of the given
// multiplier. The strike is rounded to the cent so it matches the strikes
// listed by post-split chains. The receiver is left untouched.
func (o Option) Adjusted(multiplier decimal.Decimal) Option {
	return Option{
		Direction:  o.Direction,
		Underlying: o.Underlying,
		Strike:     o.Strike.Div(multiplier).Round(StrikeDecimals),
		Expiration: o.Expiration,
	}
}

// Notional is strike × 100 × |amount|, the cash that changes hands when
// amount contracts are assigned or exercised.
func (o Option) Notional(amount int64) decimal.Decimal {
	return o.Strike.Mul(hundred).Mul(decimal.NewFromInt(abs64(amount)))
}

func (o Option) String() string {
	return fmt.Sprintf("%s $%s %s %s",
		o.Underlying, o.Strike.String(), strings.ToUpper(o.Direction.String()),
		o.Expiration.Format(time.DateOnly))
}

// Snapshot is the market data attached to a contract on one chain date.
// Greeks may be NaN when the data vendor did not publish them.
type Snapshot struct {
	Price decimal.Decimal
	Delta float64
	Theta float64
	Vega  float64
	IV    float64
}

// Contract is a chain entry: an identity plus its snapshot on the chain date.
type Contract struct {
	Option
	Snapshot
}

// Tradable reports whether the contract has a usable price.
func (c Contract) Tradable() bool {
	return c.Price.IsPositive()
}

// PremiumValue returns price × 100 × amount.
func PremiumValue(price decimal.Decimal, amount int64) decimal.Decimal {
	return price.Mul(hundred).Mul(decimal.NewFromInt(amount))
}

// Shares converts a contract amount to the number of shares it controls.
func Shares(contracts int64) int64 {
	return contracts * ContractMultiplier
}

func strikeKey(d decimal.Decimal) string {
	return d.String()
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func isNaN(f float64) bool {
	return math.IsNaN(f)
}
