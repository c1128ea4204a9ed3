package ports

import (
	"context"

	"github.com/alejandrodnm/callwriter/internal/domain"
)

// RunRecord is a persisted simulation run.
type RunRecord struct {
	ID         string
	Controller string
	Result     domain.RunResult
}

// ResultStorage persists run outcomes and their trade logs.
type ResultStorage interface {
	SaveRun(ctx context.Context, run RunRecord, trades []domain.TradeEvent) error
	GetRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetTrades(ctx context.Context, runID string) ([]domain.TradeEvent, error)
	Close() error
}
