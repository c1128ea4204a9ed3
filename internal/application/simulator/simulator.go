package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/callwriter/internal/application/engine"
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// DefaultBaselineShares is the size of the buy-and-hold position every run is
// compared against.
const DefaultBaselineShares = 100

// Config tunes the observation vector and the fitness baseline.
type Config struct {
	// IVHorizons lists, in calendar days, the expirations whose implied
	// volatility is fed to the controller.
	IVHorizons []int
	// BaselineShares is the buy-and-hold share count subtracted at the end.
	BaselineShares int64
	// Scales normalizes the close and, when present, denormalizes the
	// "delta" and "theta" targets emitted by the controller.
	Scales domain.Scales
}

// Simulator replays one security day by day against a single portfolio.
// A Simulator is not safe for concurrent use; parallel runs each build their
// own around a shared ChainLocator.
type Simulator struct {
	security  domain.Security
	portfolio *domain.Portfolio
	engine    *engine.Engine
	splits    *engine.SplitHandler
	market    ports.MarketSource
	chains    *ChainLocator
	cfg       Config

	trades int
}

// New wires a simulator for security around p. reporter may be nil.
func New(
	security domain.Security,
	p *domain.Portfolio,
	market ports.MarketSource,
	chains *ChainLocator,
	splits []domain.Split,
	reporter ports.Reporter,
	cfg Config,
) *Simulator {
	if cfg.BaselineShares <= 0 {
		cfg.BaselineShares = DefaultBaselineShares
	}
	return &Simulator{
		security:  security,
		portfolio: p,
		engine:    engine.New(reporter, p),
		splits:    engine.NewSplitHandler(security, splits, reporter),
		market:    market,
		chains:    chains,
		cfg:       cfg,
	}
}

// Portfolio returns the portfolio being simulated.
func (s *Simulator) Portfolio() *domain.Portfolio {
	return s.portfolio
}

// Simulate replays the trading days in (start, end] and returns the run
// outcome. Rejected trades and failed searches degrade to a hold for the
// day; a failed settlement aborts the run with domain.ErrLedgerCorrupted.
func (s *Simulator) Simulate(ctx context.Context, ctrl ports.Controller, start, end time.Time) (domain.RunResult, error) {
	bars, err := s.market.Bars(ctx, s.security, start, end)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("simulator.Simulate: bars: %w", err)
	}
	if len(bars) == 0 {
		return domain.RunResult{}, fmt.Errorf("simulator.Simulate: %s (%s, %s]: %w",
			s.security, start.Format(time.DateOnly), end.Format(time.DateOnly), domain.ErrNoMarketData)
	}

	baseline := decimal.NewFromInt(s.cfg.BaselineShares)
	decisions := 0
	s.trades = 0

	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return domain.RunResult{}, err
		}
		date := domain.Day(bar.Date)

		prices := map[domain.Security]decimal.Decimal{s.security: bar.Close}
		if err := s.engine.Settle(s.portfolio, prices, date); err != nil {
			return domain.RunResult{}, fmt.Errorf("simulator.Simulate: %s: %w", date.Format(time.DateOnly), err)
		}

		if mult, ok := s.splits.CheckAndInvoke(s.portfolio, date); ok {
			baseline = baseline.Mul(mult)
		}

		obs, err := s.observe(ctx, bar)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("simulator.Simulate: %s: %w", date.Format(time.DateOnly), err)
		}
		if domain.HasNaN(obs) {
			slog.Debug("incomplete observation, holding", "date", date.Format(time.DateOnly))
			continue
		}

		action, err := domain.ParseAction(ctrl.Activate(obs))
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("simulator.Simulate: %s: %w", date.Format(time.DateOnly), err)
		}
		decisions++

		switch action.Intent() {
		case domain.IntentBuy:
			err = s.closeShorts(ctx, date)
		case domain.IntentSell:
			err = s.writeCall(ctx, date, bar.Close, action)
		}
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("simulator.Simulate: %s: %w", date.Format(time.DateOnly), err)
		}
	}

	last := bars[len(bars)-1]
	value, err := s.markToMarket(ctx, domain.Day(last.Date), last.Close)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("simulator.Simulate: fitness: %w", err)
	}
	baselineValue := baseline.Mul(last.Close)

	return domain.RunResult{
		Security:    s.security,
		Start:       domain.Day(start),
		End:         domain.Day(end),
		Days:        len(bars),
		Decisions:   decisions,
		Trades:      s.trades,
		FinalClose:  last.Close,
		EndingValue: value,
		Baseline:    baselineValue,
		Fitness:     value.Sub(baselineValue),
		Portfolio:   s.portfolio,
	}, nil
}

// closeShorts buys back every written contract at the most recent chain price.
func (s *Simulator) closeShorts(ctx context.Context, date time.Time) error {
	shorts := s.portfolio.ShortContracts()
	if len(shorts) == 0 {
		return nil
	}
	chain, err := s.chains.MostRecent(ctx, date)
	if errors.Is(err, domain.ErrChainNotFound) {
		slog.Debug("no chain to close against", "date", date.Format(time.DateOnly))
		return nil
	}
	if err != nil {
		return err
	}

	for _, pos := range shorts {
		price := chain.PriceOf(pos.Contract)
		if price.IsZero() {
			// a zero price means missing, not worthless
			slog.Warn("no quote to buy back", "contract", pos.Contract.String(), "chain", chain.String())
			continue
		}
		amt := -pos.Amount
		if err := s.engine.BuyContract(s.portfolio, pos.Contract, price, amt); err != nil {
			if engine.IsRejected(err) {
				slog.Debug("buy rejected", "contract", pos.Contract.String(), "err", err)
				continue
			}
			return err
		}
		s.recordTrade(date, domain.ActionBuy, pos.Contract, amt, price)
	}
	return nil
}

// writeCall sells one call picked by the controller targets, unless a
// contract is already open.
func (s *Simulator) writeCall(ctx context.Context, date time.Time, underlying decimal.Decimal, action domain.Action) error {
	if s.portfolio.HasContracts() {
		return nil
	}
	chain, err := s.chains.MostRecent(ctx, date)
	if errors.Is(err, domain.ErrChainNotFound) {
		slog.Debug("no chain to write against", "date", date.Format(time.DateOnly))
		return nil
	}
	if err != nil {
		return err
	}

	theta, delta := s.targets(action)
	contract, err := chain.Search(underlying, date, theta, delta)
	if err != nil {
		slog.Debug("no contract for targets",
			"date", date.Format(time.DateOnly), "theta", theta, "delta", delta, "err", err)
		return nil
	}

	if err := s.engine.SellContract(s.portfolio, contract.Option, contract.Price, 1); err != nil {
		if engine.IsRejected(err) {
			slog.Debug("sell rejected", "contract", contract.String(), "err", err)
			return nil
		}
		return err
	}
	s.recordTrade(date, domain.ActionSell, contract.Option, 1, contract.Price)
	return nil
}

// targets maps the controller's theta and delta outputs back to greek units
// when the scales carry bounds for them.
func (s *Simulator) targets(action domain.Action) (theta, delta float64) {
	theta, delta = action.ThetaTarget, action.DeltaTarget
	if sc, ok := s.cfg.Scales["theta"]; ok {
		theta = sc.Denormalize(theta)
	}
	if sc, ok := s.cfg.Scales["delta"]; ok {
		delta = sc.Denormalize(delta)
	}
	return theta, delta
}

func (s *Simulator) recordTrade(date time.Time, action domain.TradeAction, contract domain.Option, amt int64, price decimal.Decimal) {
	s.trades++
	c := contract
	s.engine.Record(domain.TradeEvent{
		Date:     date,
		Action:   action,
		Security: s.security,
		Contract: &c,
		Amount:   amt,
		Price:    price,
	})
}

// markToMarket values the portfolio at close: cash, shares of the simulated
// security, and every open contract at its most recent chain price.
func (s *Simulator) markToMarket(ctx context.Context, date time.Time, px decimal.Decimal) (decimal.Decimal, error) {
	value := s.portfolio.Cash.Add(decimal.NewFromInt(s.portfolio.Shares(s.security)).Mul(px))
	held, err := s.heldOptionValue(ctx, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.Add(held), nil
}

// heldOptionValue sums amount × price × 100 over the open contracts; written
// contracts count negatively.
func (s *Simulator) heldOptionValue(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	positions := s.portfolio.Contracts()
	if len(positions) == 0 {
		return decimal.Zero, nil
	}
	chain, err := s.chains.MostRecent(ctx, date)
	if errors.Is(err, domain.ErrChainNotFound) {
		slog.Warn("no chain to value open contracts", "date", date.Format(time.DateOnly))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, err
	}

	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(domain.PremiumValue(chain.PriceOf(pos.Contract), pos.Amount))
	}
	return total, nil
}
