package simulator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
)

// ObservationSize returns the length of the vector fed to the controller for
// the given number of indicator columns.
func (c Config) ObservationSize(indicators int) int {
	return 4 + len(c.IVHorizons) + indicators
}

// ObservationSize is the observation length this simulator produces.
func (s *Simulator) ObservationSize(indicators int) int {
	return s.cfg.ObservationSize(indicators)
}

// observe builds the controller input for bar:
//
//	[cash/(100·close), availableShares/100, heldOptionValue/(100·close),
//	 normalized close, IV at each horizon..., indicators...]
//
// Missing inputs are NaN so that the day is skipped.
func (s *Simulator) observe(ctx context.Context, bar domain.Bar) ([]float64, error) {
	date := domain.Day(bar.Date)
	closeF := bar.Close.InexactFloat64()
	lot := closeF * domain.ContractMultiplier
	if lot <= 0 {
		lot = math.NaN()
	}

	held, err := s.heldOptionValue(ctx, date)
	if err != nil {
		return nil, err
	}

	obs := make([]float64, 0, s.ObservationSize(len(bar.Indicators)))
	obs = append(obs,
		s.portfolio.Cash.InexactFloat64()/lot,
		float64(s.portfolio.AvailableShares(s.security))/domain.ContractMultiplier,
		held.InexactFloat64()/lot,
		s.cfg.Scales.Normalize("close", closeF),
	)

	ivs, err := s.termStructure(ctx, bar)
	if err != nil {
		return nil, err
	}
	obs = append(obs, ivs...)
	return append(obs, bar.Indicators...), nil
}

// termStructure reads the implied volatility of the expiration closest to
// each horizon from the most recent chain.
func (s *Simulator) termStructure(ctx context.Context, bar domain.Bar) ([]float64, error) {
	if len(s.cfg.IVHorizons) == 0 {
		return nil, nil
	}
	ivs := make([]float64, len(s.cfg.IVHorizons))
	date := domain.Day(bar.Date)

	chain, err := s.chains.MostRecent(ctx, date)
	if errors.Is(err, domain.ErrChainNotFound) {
		for i := range ivs {
			ivs[i] = math.NaN()
		}
		return ivs, nil
	}
	if err != nil {
		return nil, err
	}

	for i, days := range s.cfg.IVHorizons {
		exp, ok := chain.ExpirationNear(date.Add(time.Duration(days) * 24 * time.Hour))
		if !ok {
			ivs[i] = math.NaN()
			continue
		}
		ivs[i] = s.cfg.Scales.Normalize("iv", chain.ImpliedVolatility(exp, bar.Close))
	}
	return ivs, nil
}
