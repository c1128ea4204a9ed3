package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// ChainLocator answers "which chain was most recently published on or before
// this date". Chains are not published every day, so it keeps a sorted index
// of snapshot dates and binary-searches it instead of probing day by day.
type ChainLocator struct {
	source   ports.ChainSource
	security domain.Security
	dates    []time.Time
	cache    *ChainCache
}

// NewChainLocator indexes the snapshot dates published for security.
// A nil cache gets a private one.
func NewChainLocator(ctx context.Context, source ports.ChainSource, security domain.Security, cache *ChainCache) (*ChainLocator, error) {
	dates, err := source.SnapshotDates(ctx, security)
	if err != nil {
		return nil, fmt.Errorf("simulator.NewChainLocator: %s: %w", security, err)
	}
	idx := make([]time.Time, 0, len(dates))
	seen := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		d = domain.Day(d)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		idx = append(idx, d)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].Before(idx[j]) })

	if cache == nil {
		cache = NewChainCache()
	}
	return &ChainLocator{source: source, security: security, dates: idx, cache: cache}, nil
}

// Dates returns the indexed snapshot dates, oldest first.
func (l *ChainLocator) Dates() []time.Time {
	return append([]time.Time(nil), l.dates...)
}

// MostRecent returns the chain published on date or, failing that, the
// latest one before it. It fails with domain.ErrChainNotFound when no chain
// precedes date.
func (l *ChainLocator) MostRecent(ctx context.Context, date time.Time) (*domain.OptionChain, error) {
	date = domain.Day(date)
	i := sort.Search(len(l.dates), func(i int) bool { return l.dates[i].After(date) }) - 1

	for ; i >= 0; i-- {
		snapshot := l.dates[i]
		chain, err := l.cache.GetOrLoad(snapshot, func() (*domain.OptionChain, error) {
			return l.source.ParseChain(ctx, snapshot, l.security)
		})
		if err == nil {
			return chain, nil
		}
		if !errors.Is(err, domain.ErrChainNotFound) {
			return nil, fmt.Errorf("simulator.MostRecent: %s: %w", snapshot.Format(time.DateOnly), err)
		}
		// The index listed a snapshot the source cannot load; keep walking back.
		slog.Warn("indexed chain missing", "security", l.security.String(), "date", snapshot.Format(time.DateOnly))
	}
	return nil, fmt.Errorf("simulator.MostRecent: %s on or before %s: %w",
		l.security, date.Format(time.DateOnly), domain.ErrChainNotFound)
}
