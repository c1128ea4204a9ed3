package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// Engine applies trades and settlements to portfolios. Besides the portfolios
// it settles and an optional reporter, it only remembers the latest
// settlement date: trades in contracts expired by then are refused.
//
// Every constraint violation on a trade returns an error matching
// domain.ErrInsufficientResources or domain.ErrContractExpired and leaves the
// portfolio untouched.
type Engine struct {
	portfolios []*domain.Portfolio
	reporter   ports.Reporter
	asOf       time.Time
}

// New creates an engine managing the given portfolios. reporter may be nil.
func New(reporter ports.Reporter, portfolios ...*domain.Portfolio) *Engine {
	return &Engine{portfolios: portfolios, reporter: reporter}
}

// SettleAll settles every managed portfolio.
func (e *Engine) SettleAll(prices map[domain.Security]decimal.Decimal, asOf time.Time) error {
	for _, p := range e.portfolios {
		if err := e.Settle(p, prices, asOf); err != nil {
			return err
		}
	}
	return nil
}

// Settle processes every contract of p that has expired by asOf and whose
// underlying is priced in prices: in-the-money written contracts are
// assigned, in-the-money held contracts are exercised and the rest expire.
//
// A settlement that fails means the ledger was driven into a state the trade
// checks should have prevented; the returned error wraps
// domain.ErrLedgerCorrupted and the run must not continue.
func (e *Engine) Settle(p *domain.Portfolio, prices map[domain.Security]decimal.Decimal, asOf time.Time) error {
	if day := domain.Day(asOf); day.After(e.asOf) {
		e.asOf = day
	}
	for _, pos := range p.Contracts() {
		contract, amt := pos.Contract, pos.Amount
		price, ok := prices[contract.Underlying]
		if !ok || !contract.Expired(asOf) {
			continue
		}

		var (
			action domain.TradeAction
			err    error
		)
		switch {
		case contract.ITM(price) && amt < 0:
			action, err = domain.ActionAssign, e.Assign(p, contract, amt)
		case contract.ITM(price) && amt > 0:
			action, err = domain.ActionExercise, e.Exercise(p, contract, amt)
		default:
			action, err = domain.ActionExpire, e.Expire(p, contract, amt)
		}
		if err != nil {
			return fmt.Errorf("engine.Settle: %s %s: %w: %w", action, contract, domain.ErrLedgerCorrupted, err)
		}

		slog.Debug("contract settled",
			"action", action,
			"contract", contract.String(),
			"amount", amt,
			"underlying", price.String(),
			"date", asOf.Format(time.DateOnly),
		)
		eventPrice := contract.Strike
		if action == domain.ActionExpire {
			eventPrice = decimal.Zero
		}
		e.record(domain.TradeEvent{
			Date:     domain.Day(asOf),
			Action:   action,
			Security: contract.Underlying,
			Contract: &contract,
			Amount:   amt,
			Price:    eventPrice,
		})
	}
	return nil
}

// Assign settles amt written contracts (amt < 0). A written call delivers
// 100 shares per contract at the strike; a written put buys them.
func (e *Engine) Assign(p *domain.Portfolio, contract domain.Option, amt int64) error {
	if amt >= 0 {
		return fmt.Errorf("engine.Assign: %s: amount must be negative, got %d", contract, amt)
	}
	sec := contract.Underlying
	shares := domain.Shares(-amt)
	notional := contract.Notional(amt)

	switch contract.Direction {
	case domain.Call:
		held := p.Shares(sec)
		if held < shares {
			return domain.Insufficient("engine.Assign", domain.ResourceShares, contract,
				decimal.NewFromInt(shares), decimal.NewFromInt(held))
		}
		p.SetShares(sec, held-shares)
		p.Cash = p.Cash.Add(notional)
	case domain.Put:
		if p.Cash.LessThan(notional) {
			return domain.Insufficient("engine.Assign", domain.ResourceCash, contract, notional, p.Cash)
		}
		p.Cash = p.Cash.Sub(notional)
		p.SetShares(sec, p.Shares(sec)+shares)
	default:
		return fmt.Errorf("engine.Assign: %s: invalid direction", contract)
	}

	pos, _ := p.PositionFor(contract)
	p.SetPosition(contract, pos.Amount-amt, pos.Price)
	releaseCollateral(p, sec, shares)
	return nil
}

// Exercise settles amt held contracts (amt > 0). A held call buys 100 shares
// per contract at the strike; a held put sells them.
func (e *Engine) Exercise(p *domain.Portfolio, contract domain.Option, amt int64) error {
	if amt <= 0 {
		return fmt.Errorf("engine.Exercise: %s: amount must be positive, got %d", contract, amt)
	}
	sec := contract.Underlying
	shares := domain.Shares(amt)
	notional := contract.Notional(amt)

	switch contract.Direction {
	case domain.Call:
		if p.Cash.LessThan(notional) {
			return domain.Insufficient("engine.Exercise", domain.ResourceCash, contract, notional, p.Cash)
		}
		p.Cash = p.Cash.Sub(notional)
		p.SetShares(sec, p.Shares(sec)+shares)
	case domain.Put:
		held := p.Shares(sec)
		if held < shares {
			return domain.Insufficient("engine.Exercise", domain.ResourceShares, contract,
				decimal.NewFromInt(shares), decimal.NewFromInt(held))
		}
		p.SetShares(sec, held-shares)
		p.Cash = p.Cash.Add(notional)
	default:
		return fmt.Errorf("engine.Exercise: %s: invalid direction", contract)
	}

	pos, _ := p.PositionFor(contract)
	p.SetPosition(contract, pos.Amount-amt, pos.Price)
	return nil
}

// Expire removes the contract from the portfolio. Written contracts release
// their collateral.
func (e *Engine) Expire(p *domain.Portfolio, contract domain.Option, amt int64) error {
	p.RemovePosition(contract)
	if amt < 0 {
		releaseCollateral(p, contract.Underlying, domain.Shares(-amt))
	}
	return nil
}

// BuyContract buys amt contracts at price per share. Buying back a written
// contract releases the collateral pledged for the closed part.
func (e *Engine) BuyContract(p *domain.Portfolio, contract domain.Option, price decimal.Decimal, amt int64) error {
	if amt <= 0 {
		return fmt.Errorf("engine.BuyContract: %s: amount must be positive, got %d", contract, amt)
	}
	if err := e.checkLive("engine.BuyContract", contract); err != nil {
		return err
	}
	cost := domain.PremiumValue(price, amt)
	if p.Cash.LessThan(cost) {
		return domain.Insufficient("engine.BuyContract", domain.ResourceCash, contract, cost, p.Cash)
	}

	prev := p.Position(contract)
	if prev < 0 {
		releaseCollateral(p, contract.Underlying, domain.Shares(min(amt, -prev)))
	}
	p.Cash = p.Cash.Sub(cost)
	p.SetPosition(contract, prev+amt, price)
	return nil
}

// SellContract sells amt contracts at price per share. Selling more than the
// held long contracts writes new ones, which must be covered by shares that
// are not already pledged; the uncovered part is pledged as collateral.
func (e *Engine) SellContract(p *domain.Portfolio, contract domain.Option, price decimal.Decimal, amt int64) error {
	if amt <= 0 {
		return fmt.Errorf("engine.SellContract: %s: amount must be positive, got %d", contract, amt)
	}
	if err := e.checkLive("engine.SellContract", contract); err != nil {
		return err
	}
	sec := contract.Underlying
	prev := p.Position(contract)
	long := max(prev, 0)

	available := domain.Shares(long) + p.Shares(sec) - p.Collateral(sec)
	needed := domain.Shares(amt)
	if available < needed {
		return domain.Insufficient("engine.SellContract", domain.ResourceCollateral, contract,
			decimal.NewFromInt(needed), decimal.NewFromInt(available))
	}

	p.SetPosition(contract, prev-amt, price)
	if written := amt - long; written > 0 {
		p.SetCollateral(sec, p.Collateral(sec)+domain.Shares(written))
	}
	p.Cash = p.Cash.Add(domain.PremiumValue(price, amt))
	return nil
}

// Record forwards an event to the reporter, if any.
func (e *Engine) Record(event domain.TradeEvent) {
	e.record(event)
}

func (e *Engine) record(event domain.TradeEvent) {
	if e.reporter != nil {
		e.reporter.Record(event)
	}
}

// checkLive refuses contracts that expired on or before the last settlement.
func (e *Engine) checkLive(op string, contract domain.Option) error {
	if !e.asOf.IsZero() && contract.Expired(e.asOf) {
		return fmt.Errorf("%s: %s on %s: %w", op, contract, e.asOf.Format(time.DateOnly), domain.ErrContractExpired)
	}
	return nil
}

func releaseCollateral(p *domain.Portfolio, sec domain.Security, shares int64) {
	p.SetCollateral(sec, p.Collateral(sec)-shares)
}

// IsRejected reports whether err is a recoverable trade rejection.
func IsRejected(err error) bool {
	return errors.Is(err, domain.ErrInsufficientResources) || errors.Is(err, domain.ErrContractExpired)
}
