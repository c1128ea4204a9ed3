package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/callwriter/config"
	"github.com/alejandrodnm/callwriter/internal/adapters/csvdata"
	"github.com/alejandrodnm/callwriter/internal/adapters/notify"
	"github.com/alejandrodnm/callwriter/internal/adapters/storage"
	"github.com/alejandrodnm/callwriter/internal/application/evaluator"
	"github.com/alejandrodnm/callwriter/internal/application/simulator"
	"github.com/alejandrodnm/callwriter/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the trade log and final portfolio of each printed run")
	genome := flag.String("genome", "", "run a single genome file instead of a random population")
	population := flag.Int("population", 0, "random population size (overrides config)")
	start := flag.String("start", "", "window start YYYY-MM-DD, exclusive (overrides config)")
	end := flag.String("end", "", "window end YYYY-MM-DD, inclusive (overrides config)")
	saveBest := flag.String("save-best", "", "write the best genome of the population to this path")
	leaderboard := flag.Int("leaderboard", 0, "print the N best stored runs and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *genome != "" {
		cfg.Evaluation.Genome = *genome
	}
	if *population > 0 {
		cfg.Evaluation.Population = *population
	}
	if *start != "" && *end != "" {
		cfg.Simulation.Start, cfg.Simulation.End = *start, *end
	}
	setupLogger(cfg.Log)

	slog.Info("callwriter starting",
		"config", *configPath,
		"symbol", cfg.Simulation.Symbol,
		"data_dir", cfg.Simulation.DataDir,
		"genome", cfg.Evaluation.Genome,
		"population", cfg.Evaluation.Population,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *leaderboard > 0 {
		runs, err := store.GetRuns(ctx, *leaderboard)
		if err != nil {
			slog.Error("failed to read runs", "err", err)
			os.Exit(1)
		}
		console.PrintLeaderboard(runs)
		return
	}

	security := domain.NewSecurity(cfg.Simulation.Symbol)
	source := csvdata.NewSource(cfg.Simulation.DataDir)

	splits, err := source.SplitsFor(ctx, security)
	if err != nil {
		slog.Error("failed to load splits", "err", err)
		os.Exit(1)
	}
	scales, err := source.Scales(security)
	if err != nil {
		slog.Error("failed to load scales", "err", err)
		os.Exit(1)
	}
	indicators, err := source.Indicators(security)
	if err != nil {
		slog.Error("failed to load market data", "err", err, "symbol", security.Symbol)
		os.Exit(1)
	}

	simCfg := simulator.Config{IVHorizons: cfg.Simulation.IVHorizons, Scales: scales}
	chains := csvdata.NewThrottledChains(source, cfg.Evaluation.ChainReadsPerSec, 1)
	ev := evaluator.New(security, source, chains, splits, evaluator.Config{
		InitialCash:   cfg.InitialCash(),
		InitialShares: cfg.Simulation.InitialShares,
		Workers:       cfg.Evaluation.Workers,
		Simulator:     simCfg,
	})

	rng := newRand(cfg.Evaluation.Seed)
	r, err := window(cfg, source, security, rng)
	if err != nil {
		slog.Error("failed to pick a window", "err", err)
		os.Exit(1)
	}

	bt := &app{
		evaluator: ev,
		store:     store,
		console:   console,
		inputs:    simCfg.ObservationSize(len(indicators)),
	}

	if cfg.Evaluation.Genome != "" {
		err = bt.runGenome(ctx, cfg.Evaluation.Genome, r)
	} else {
		err = bt.runPopulation(ctx, cfg.Evaluation.Population, rng, r, *saveBest)
	}
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	slog.Info("callwriter stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
