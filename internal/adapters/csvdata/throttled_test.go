package csvdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/callwriter/internal/adapters/csvdata"
	"github.com/alejandrodnm/callwriter/internal/domain"
)

func TestThrottledChains_Delegates(t *testing.T) {
	src := csvdata.NewThrottledChains(csvdata.NewSource(fixture(t)), 0, 0)

	chain, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 3), tsla)
	require.NoError(t, err)
	assert.Equal(t, 4, chain.Len())

	dates, err := src.SnapshotDates(context.Background(), tsla)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

func TestThrottledChains_PropagatesNotFound(t *testing.T) {
	src := csvdata.NewThrottledChains(csvdata.NewSource(fixture(t)), 100, 1)

	_, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 2), tsla)

	assert.ErrorIs(t, err, domain.ErrChainNotFound)
}

func TestThrottledChains_WaitHonorsContext(t *testing.T) {
	// one read every ~17 minutes: the second read cannot fit in the deadline
	src := csvdata.NewThrottledChains(csvdata.NewSource(fixture(t)), 0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.ParseChain(ctx, domain.Date(2020, 9, 3), tsla)
	require.NoError(t, err)

	_, err = src.ParseChain(ctx, domain.Date(2020, 9, 3), tsla)
	assert.Error(t, err)
}
