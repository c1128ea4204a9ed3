package csvdata_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/callwriter/internal/adapters/csvdata"
	"github.com/alejandrodnm/callwriter/internal/domain"
)

var tsla = domain.NewSecurity("TSLA")

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds a TSLA data directory and returns its root.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "TSLA")

	writeFile(t, filepath.Join(dir, "ta.csv"), `,date,close,macd,rsi
0,2020-09-01,475.05,,
1,2020-09-02,447.37,1.5,0.42
2,2020-09-03,407.00,-2.25,0.38
3,2020-09-04,418.32,-3,0.40
`)
	writeFile(t, filepath.Join(dir, "chains", "200903.csv"), `direction,expiration,strike,price,iv,delta,theta,vega
call,200911,420,12.5,0.9,0.45,-1.2,0.3
call,200911,440,7.25,0.88,0.33,-1.1,0.28
put,200911,380,9,0.95,-0.3,-1.0,0.25
call,200918,420,-9999999,-9999999,-9999999,-9999999,-9999999
`)
	writeFile(t, filepath.Join(dir, "chains", "200901.csv"), `direction,expiration,strike,price,delta,theta,vega
call,2020-09-04,500,3,0.2,-4,0.1
`)
	writeFile(t, filepath.Join(dir, "chains", "README.txt"), "not a chain")
	writeFile(t, filepath.Join(dir, "splits.csv"), `date,multiplier
2020-08-31,5
`)
	writeFile(t, filepath.Join(dir, "scales.csv"), `name,min,max
close,100,900
delta,0,1
`)
	return root
}

func TestSource_Bars(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	bars, err := src.Bars(context.Background(), tsla, domain.Date(2020, 9, 1), domain.Date(2020, 9, 3))

	require.NoError(t, err)
	require.Len(t, bars, 2, "start is exclusive, end inclusive")
	assert.Equal(t, domain.Date(2020, 9, 2), bars[0].Date)
	assert.True(t, bars[0].Close.Equal(decimal.RequireFromString("447.37")))
	assert.Equal(t, []float64{1.5, 0.42}, bars[0].Indicators)
	assert.Equal(t, domain.Date(2020, 9, 3), bars[1].Date)
}

func TestSource_BarsEmptyCellsAreNaN(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	bars, err := src.AllBars(tsla)

	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.True(t, math.IsNaN(bars[0].Indicators[0]))
	assert.True(t, math.IsNaN(bars[0].Indicators[1]))
}

func TestSource_Indicators(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	cols, err := src.Indicators(tsla)

	require.NoError(t, err)
	assert.Equal(t, []string{"macd", "rsi"}, cols)
}

func TestSource_BarsUnknownSymbol(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	_, err := src.Bars(context.Background(), domain.NewSecurity("GOOG"), time.Time{}, time.Now())

	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestSource_ParseChain(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	chain, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 3), tsla)

	require.NoError(t, err)
	assert.Equal(t, "TSLA20200903", chain.String())
	assert.Equal(t, 4, chain.Len())

	c, ok := chain.Lookup(domain.Call, domain.Date(2020, 9, 11), decimal.NewFromInt(440))
	require.True(t, ok)
	assert.True(t, c.Price.Equal(decimal.RequireFromString("7.25")))
	assert.InDelta(t, 0.33, c.Delta, 1e-9)
	assert.InDelta(t, -1.1, c.Theta, 1e-9)
	assert.InDelta(t, 0.88, c.IV, 1e-9)

	put, ok := chain.Lookup(domain.Put, domain.Date(2020, 9, 11), decimal.NewFromInt(380))
	require.True(t, ok)
	assert.InDelta(t, -0.3, put.Delta, 1e-9)
}

func TestSource_ParseChainScrubsMissingValues(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	chain, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 3), tsla)
	require.NoError(t, err)

	c, ok := chain.Lookup(domain.Call, domain.Date(2020, 9, 18), decimal.NewFromInt(420))
	require.True(t, ok)
	assert.True(t, c.Price.IsZero())
	assert.False(t, c.Tradable())
	assert.True(t, math.IsNaN(c.Delta))
	assert.True(t, math.IsNaN(c.Theta))
	assert.True(t, math.IsNaN(c.IV))
}

func TestSource_ParseChainWithoutIVColumn(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	chain, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 1), tsla)

	require.NoError(t, err)
	c, ok := chain.Lookup(domain.Call, domain.Date(2020, 9, 4), decimal.NewFromInt(500))
	require.True(t, ok)
	assert.True(t, math.IsNaN(c.IV))
}

func TestSource_ParseChainNotFound(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	_, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 2), tsla)

	assert.ErrorIs(t, err, domain.ErrChainNotFound)
}

func TestSource_ParseChainBadDirection(t *testing.T) {
	root := fixture(t)
	writeFile(t, filepath.Join(root, "TSLA", "chains", "200904.csv"), `direction,expiration,strike,price
straddle,200911,420,1
`)
	src := csvdata.NewSource(root)

	_, err := src.ParseChain(context.Background(), domain.Date(2020, 9, 4), tsla)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrChainNotFound)
}

func TestSource_SnapshotDates(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	dates, err := src.SnapshotDates(context.Background(), tsla)

	require.NoError(t, err)
	assert.ElementsMatch(t, []time.Time{domain.Date(2020, 9, 1), domain.Date(2020, 9, 3)}, dates)
}

func TestSource_SnapshotDatesNoChains(t *testing.T) {
	src := csvdata.NewSource(t.TempDir())

	dates, err := src.SnapshotDates(context.Background(), tsla)

	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestSource_SplitsFor(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	splits, err := src.SplitsFor(context.Background(), tsla)

	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, domain.Date(2020, 8, 31), splits[0].Date)
	assert.True(t, splits[0].Multiplier.Equal(decimal.NewFromInt(5)))
}

func TestSource_SplitsForMissingFile(t *testing.T) {
	src := csvdata.NewSource(t.TempDir())

	splits, err := src.SplitsFor(context.Background(), tsla)

	require.NoError(t, err)
	assert.Empty(t, splits)
}

func TestSource_Scales(t *testing.T) {
	src := csvdata.NewSource(fixture(t))

	scales, err := src.Scales(tsla)

	require.NoError(t, err)
	assert.Equal(t, domain.Scale{Min: 100, Max: 900}, scales["close"])
	assert.InDelta(t, 0.0, scales.Normalize("close", 500), 1e-9)
	assert.Equal(t, domain.Scale{Min: 0, Max: 1}, scales["delta"])
}
