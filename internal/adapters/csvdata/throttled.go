package csvdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// ThrottledChains limita las lecturas de cadenas por segundo, compartido
// entre todos los workers de una evaluación.
type ThrottledChains struct {
	next    ports.ChainSource
	limiter *rate.Limiter
}

var _ ports.ChainSource = (*ThrottledChains)(nil)

// NewThrottledChains envuelve next con un límite de perSec lecturas por segundo.
// perSec <= 0 desactiva el límite.
func NewThrottledChains(next ports.ChainSource, perSec float64, burst int) *ThrottledChains {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ThrottledChains{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// ParseChain espera turno en el limiter y delega.
func (t *ThrottledChains) ParseChain(ctx context.Context, date time.Time, sec domain.Security) (*domain.OptionChain, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("csvdata.ParseChain: rate limiter: %w", err)
	}
	return t.next.ParseChain(ctx, date, sec)
}

// SnapshotDates no consume cupo: es un único listado de directorio.
func (t *ThrottledChains) SnapshotDates(ctx context.Context, sec domain.Security) ([]time.Time, error) {
	return t.next.SnapshotDates(ctx, sec)
}
