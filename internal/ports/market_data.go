package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
)

// MarketSource provides the daily bars of a security.
type MarketSource interface {
	// Bars returns the bars with start < date <= end, oldest first.
	Bars(ctx context.Context, security domain.Security, start, end time.Time) ([]domain.Bar, error)
}

// ChainSource provides option chain snapshots.
type ChainSource interface {
	// ParseChain loads the chain published on date. It fails with
	// domain.ErrChainNotFound when no snapshot exists for that date.
	ParseChain(ctx context.Context, date time.Time, security domain.Security) (*domain.OptionChain, error)

	// SnapshotDates lists the dates with a published chain, in any order.
	SnapshotDates(ctx context.Context, security domain.Security) ([]time.Time, error)
}

// SplitSource provides the split schedule of a security.
type SplitSource interface {
	SplitsFor(ctx context.Context, security domain.Security) ([]domain.Split, error)
}
