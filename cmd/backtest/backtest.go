package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/alejandrodnm/callwriter/config"
	"github.com/alejandrodnm/callwriter/internal/adapters/controller"
	"github.com/alejandrodnm/callwriter/internal/adapters/csvdata"
	"github.com/alejandrodnm/callwriter/internal/adapters/notify"
	"github.com/alejandrodnm/callwriter/internal/application/evaluator"
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

type app struct {
	evaluator *evaluator.Evaluator
	store     ports.ResultStorage
	console   *notify.Console
	inputs    int
}

// newRand returns a PCG generator; seed 0 draws a fresh one.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	slog.Debug("random source", "seed", seed)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// window returns the configured range or a random one of cfg days.
func window(cfg *config.Config, source *csvdata.Source, security domain.Security, rng *rand.Rand) (domain.DateRange, error) {
	start, end, ok, err := cfg.Window()
	if err != nil {
		return domain.DateRange{}, err
	}
	if ok {
		return domain.NewDateRange(start, end)
	}

	bars, err := source.AllBars(security)
	if err != nil {
		return domain.DateRange{}, err
	}
	factory, err := evaluator.NewDateRangeFactory(domain.TradingDays(bars))
	if err != nil {
		return domain.DateRange{}, err
	}
	return factory.Random(rng, cfg.Simulation.Days)
}

// runGenome simulates a stored genome next to the buy-and-hold benchmark.
func (a *app) runGenome(ctx context.Context, path string, r domain.DateRange) error {
	l, err := controller.LoadGenome(path)
	if err != nil {
		return err
	}
	if l.Inputs() != a.inputs {
		slog.Warn("genome trained on a different observation size",
			"genome", l.Name(), "inputs", l.Inputs(), "observation", a.inputs)
	}

	slog.Info("=== SINGLE RUN ===", "genome", l.Name(), "range", r.String())
	score, err := a.evaluator.Run(ctx, evaluator.Candidate{Name: l.Name(), Controller: l}, r)
	if err != nil {
		return err
	}
	a.console.PrintRun(score.Candidate, score.Result, score.Trades)
	return a.save(ctx, score)
}

// runPopulation scores n random genomes plus the hold and writer benchmarks.
func (a *app) runPopulation(ctx context.Context, n int, rng *rand.Rand, r domain.DateRange, saveBest string) error {
	pop, err := controller.RandomPopulation(rng, n, a.inputs)
	if err != nil {
		return err
	}

	byName := make(map[string]*controller.Linear, len(pop))
	candidates := make([]evaluator.Candidate, 0, len(pop)+2)
	for _, l := range pop {
		byName[l.Name()] = l
		candidates = append(candidates, evaluator.Candidate{Name: l.Name(), Controller: l})
	}
	for _, f := range []*controller.Fixed{controller.Hold(), controller.Writer(0.3, 0)} {
		candidates = append(candidates, evaluator.Candidate{Name: f.Name(), Controller: f})
	}

	slog.Info("=== POPULATION ===", "size", len(candidates), "range", r.String())
	scores, err := a.evaluator.Evaluate(ctx, candidates, r)
	if err != nil {
		return err
	}

	for _, s := range scores {
		if err := a.save(ctx, s); err != nil {
			return err
		}
	}

	best := scores[0]
	a.console.PrintRun(best.Candidate, best.Result, best.Trades)

	runs, err := a.store.GetRuns(ctx, 10)
	if err != nil {
		return err
	}
	a.console.PrintLeaderboard(runs)

	if saveBest == "" {
		return nil
	}
	for _, s := range scores {
		if l, ok := byName[s.Candidate]; ok {
			if err := controller.SaveGenome(saveBest, l); err != nil {
				return err
			}
			slog.Info("best genome saved", "genome", l.Name(), "path", saveBest,
				"fitness", s.Result.Fitness.StringFixed(2))
			return nil
		}
	}
	return fmt.Errorf("no genome among %d scores", len(scores))
}

func (a *app) save(ctx context.Context, s evaluator.Score) error {
	run := ports.RunRecord{ID: s.RunID, Controller: s.Candidate, Result: s.Result}
	if err := a.store.SaveRun(ctx, run, s.Trades); err != nil {
		return fmt.Errorf("save run %s: %w", s.RunID, err)
	}
	return nil
}
