package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Position is a held (Amount > 0) or written (Amount < 0) contract position.
// Price is the premium of the last trade that touched the position.
type Position struct {
	Contract Option
	Amount   int64
	Price    decimal.Decimal
}

// Portfolio is the ledger of one simulation run: cash, shares, option
// positions and the shares pledged as collateral for written calls.
//
// A Portfolio is not safe for concurrent use; each run owns its own.
type Portfolio struct {
	Cash decimal.Decimal

	stocks     map[Security]int64
	contracts  map[ContractKey]Position
	collateral map[Security]int64
}

// NewPortfolio builds a portfolio with the given cash and share holdings.
func NewPortfolio(cash decimal.Decimal, stocks map[Security]int64) *Portfolio {
	p := &Portfolio{
		Cash:       cash,
		stocks:     make(map[Security]int64, len(stocks)),
		contracts:  make(map[ContractKey]Position),
		collateral: make(map[Security]int64),
	}
	for sec, amt := range stocks {
		p.stocks[sec] = amt
	}
	return p
}

// Shares returns the number of shares held of a security.
func (p *Portfolio) Shares(sec Security) int64 {
	return p.stocks[sec]
}

// SetShares overwrites the share count of a security.
func (p *Portfolio) SetShares(sec Security, amount int64) {
	p.stocks[sec] = amount
}

// Stocks returns a copy of the share holdings.
func (p *Portfolio) Stocks() map[Security]int64 {
	out := make(map[Security]int64, len(p.stocks))
	for sec, amt := range p.stocks {
		out[sec] = amt
	}
	return out
}

// Collateral returns the shares of sec pledged against written calls.
func (p *Portfolio) Collateral(sec Security) int64 {
	return p.collateral[sec]
}

// SetCollateral overwrites the pledged shares, clamping at zero.
func (p *Portfolio) SetCollateral(sec Security, amount int64) {
	if amount < 0 {
		amount = 0
	}
	p.collateral[sec] = amount
}

// AvailableShares is shares held minus shares pledged as collateral.
func (p *Portfolio) AvailableShares(sec Security) int64 {
	return p.stocks[sec] - p.collateral[sec]
}

// Position returns the signed contract amount held; 0 when absent.
func (p *Portfolio) Position(o Option) int64 {
	return p.contracts[o.Key()].Amount
}

// PositionFor returns the full position entry for a contract.
func (p *Portfolio) PositionFor(o Option) (Position, bool) {
	pos, ok := p.contracts[o.Key()]
	return pos, ok
}

// SetPosition overwrites a contract position. A zero amount removes the entry:
// zero-amount positions are indistinguishable from absent ones.
func (p *Portfolio) SetPosition(o Option, amount int64, price decimal.Decimal) {
	key := o.Key()
	if amount == 0 {
		delete(p.contracts, key)
		return
	}
	p.contracts[key] = Position{Contract: o, Amount: amount, Price: price}
}

// RemovePosition deletes a contract entry.
func (p *Portfolio) RemovePosition(o Option) {
	delete(p.contracts, o.Key())
}

// Contracts returns the open positions ordered by underlying, expiration,
// direction and strike, so that iteration is deterministic.
func (p *Portfolio) Contracts() []Position {
	out := make([]Position, 0, len(p.contracts))
	for _, pos := range p.contracts {
		if pos.Amount != 0 {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Contract, out[j].Contract
		if a.Underlying.Symbol != b.Underlying.Symbol {
			return a.Underlying.Symbol < b.Underlying.Symbol
		}
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.Strike.LessThan(b.Strike)
	})
	return out
}

// HasContracts reports whether any option position is open.
func (p *Portfolio) HasContracts() bool {
	return len(p.contracts) > 0
}

// ShortContracts returns the written positions only.
func (p *Portfolio) ShortContracts() []Position {
	var out []Position
	for _, pos := range p.Contracts() {
		if pos.Amount < 0 {
			out = append(out, pos)
		}
	}
	return out
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	c := NewPortfolio(p.Cash, p.stocks)
	for k, v := range p.contracts {
		c.contracts[k] = v
	}
	for k, v := range p.collateral {
		c.collateral[k] = v
	}
	return c
}

// Equal compares the ledger content of two portfolios.
func (p *Portfolio) Equal(other *Portfolio) bool {
	if !p.Cash.Equal(other.Cash) {
		return false
	}
	if !equalCounts(p.stocks, other.stocks) || !equalCounts(p.collateral, other.collateral) {
		return false
	}
	if len(p.contracts) != len(other.contracts) {
		return false
	}
	for k, v := range p.contracts {
		o, ok := other.contracts[k]
		if !ok || o.Amount != v.Amount {
			return false
		}
	}
	return true
}

func equalCounts(a, b map[Security]int64) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

func (p *Portfolio) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cash: %s\n", p.Cash.StringFixed(2))

	secs := make([]Security, 0, len(p.stocks))
	for sec := range p.stocks {
		secs = append(secs, sec)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i].Symbol < secs[j].Symbol })
	sb.WriteString("securities:")
	for _, sec := range secs {
		fmt.Fprintf(&sb, " %s=%d", sec, p.stocks[sec])
	}
	for _, pos := range p.Contracts() {
		fmt.Fprintf(&sb, " [%s]=%d", pos.Contract, pos.Amount)
	}
	sb.WriteString("\ncollateral:")
	for _, sec := range secs {
		if c := p.collateral[sec]; c != 0 {
			fmt.Fprintf(&sb, " %s=%d", sec, c)
		}
	}
	return sb.String()
}
