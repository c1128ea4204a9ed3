package evaluator

// evaluator.go scores a population of controllers over one shared window.
// Runs are independent: each gets its own portfolio, engine and simulator,
// and only the read-only market data and the chain cache are shared.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/callwriter/internal/application/simulator"
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// Candidate is one controller to evaluate.
type Candidate struct {
	Name       string
	Controller ports.Controller
}

// Score is the outcome of one candidate's run.
type Score struct {
	RunID     string
	Candidate string
	Result    domain.RunResult
	Trades    []domain.TradeEvent
}

// Config holds the starting position of every run and the pool size.
type Config struct {
	InitialCash   decimal.Decimal
	InitialShares int64
	// Workers bounds the runs in flight; <= 0 uses runtime.NumCPU().
	Workers   int
	Simulator simulator.Config
}

// Evaluator runs candidates in parallel against one security.
type Evaluator struct {
	security domain.Security
	market   ports.MarketSource
	chains   ports.ChainSource
	splits   []domain.Split
	cfg      Config
}

// New creates an Evaluator.
func New(security domain.Security, market ports.MarketSource, chains ports.ChainSource, splits []domain.Split, cfg Config) *Evaluator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Evaluator{security: security, market: market, chains: chains, splits: splits, cfg: cfg}
}

// Evaluate simulates every candidate over r and returns the scores ranked by
// fitness, best first. The chain cache lives for the duration of the call.
// A run that fails aborts the whole evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, candidates []Candidate, r domain.DateRange) ([]Score, error) {
	started := time.Now()
	locator, err := simulator.NewChainLocator(ctx, e.chains, e.security, simulator.NewChainCache())
	if err != nil {
		return nil, fmt.Errorf("evaluator.Evaluate: %w", err)
	}

	scores := make([]Score, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, c := range candidates {
		g.Go(func() error {
			score, err := e.run(gctx, locator, c, r)
			if err != nil {
				return fmt.Errorf("evaluator.Evaluate: candidate %s: %w", c.Name, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(scores)
	slog.Info("population evaluated",
		"candidates", len(candidates),
		"range", r.String(),
		"workers", e.cfg.Workers,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return scores, nil
}

// Run simulates a single candidate with a private chain cache.
func (e *Evaluator) Run(ctx context.Context, c Candidate, r domain.DateRange) (Score, error) {
	locator, err := simulator.NewChainLocator(ctx, e.chains, e.security, nil)
	if err != nil {
		return Score{}, fmt.Errorf("evaluator.Run: %w", err)
	}
	return e.run(ctx, locator, c, r)
}

func (e *Evaluator) run(ctx context.Context, locator *simulator.ChainLocator, c Candidate, r domain.DateRange) (Score, error) {
	p := domain.NewPortfolio(e.cfg.InitialCash, map[domain.Security]int64{e.security: e.cfg.InitialShares})
	log := &tradeLog{}
	sim := simulator.New(e.security, p, e.market, locator, e.splits, log, e.cfg.Simulator)

	res, err := sim.Simulate(ctx, c.Controller, r.Start, r.End)
	if err != nil {
		return Score{}, err
	}
	slog.Debug("run finished",
		"candidate", c.Name,
		"fitness", res.Fitness.StringFixed(2),
		"trades", res.Trades,
	)
	return Score{RunID: uuid.NewString(), Candidate: c.Name, Result: res, Trades: log.events()}, nil
}

// Rank sorts scores by fitness, best first; equal fitness keeps input order.
func Rank(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Result.Fitness.GreaterThan(scores[j].Result.Fitness)
	})
}

// tradeLog collects the events of one run.
type tradeLog struct {
	mu   sync.Mutex
	list []domain.TradeEvent
}

func (l *tradeLog) Record(e domain.TradeEvent) {
	l.mu.Lock()
	l.list = append(l.list, e)
	l.mu.Unlock()
}

func (l *tradeLog) events() []domain.TradeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.TradeEvent(nil), l.list...)
}
