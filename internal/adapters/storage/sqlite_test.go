package storage_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/callwriter/internal/adapters/storage"
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

var tsla = domain.NewSecurity("TSLA")

func makeRun(id string, fitness string) ports.RunRecord {
	p := domain.NewPortfolio(decimal.RequireFromString("600"), map[domain.Security]int64{tsla: 100})
	return ports.RunRecord{
		ID:         id,
		Controller: "linear-" + id,
		Result: domain.RunResult{
			Security:    tsla,
			Start:       domain.Date(2020, 9, 2),
			End:         domain.Date(2020, 9, 11),
			Days:        7,
			Decisions:   6,
			Trades:      1,
			FinalClose:  decimal.RequireFromString("372.72"),
			EndingValue: decimal.RequireFromString("37872"),
			Baseline:    decimal.RequireFromString("37272"),
			Fitness:     decimal.RequireFromString(fitness),
			Portfolio:   p,
		},
	}
}

func TestSQLiteStorage_SaveAndGetRuns(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveRun(ctx, makeRun("a", "-400"), nil))
	require.NoError(t, db.SaveRun(ctx, makeRun("b", "600"), nil))
	require.NoError(t, db.SaveRun(ctx, makeRun("c", "12.5"), nil))

	runs, err := db.GetRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Ordenados por fitness desc
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "c", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)

	got := runs[0]
	assert.Equal(t, "linear-b", got.Controller)
	assert.Equal(t, tsla, got.Result.Security)
	assert.Equal(t, domain.Date(2020, 9, 2), got.Result.Start)
	assert.Equal(t, domain.Date(2020, 9, 11), got.Result.End)
	assert.Equal(t, 7, got.Result.Days)
	assert.True(t, got.Result.Fitness.Equal(decimal.NewFromInt(600)))
	assert.True(t, got.Result.FinalClose.Equal(decimal.RequireFromString("372.72")))
	require.NotNil(t, got.Result.Portfolio)
	assert.Equal(t, int64(100), got.Result.Portfolio.Shares(tsla))
	assert.True(t, got.Result.Portfolio.Cash.Equal(decimal.NewFromInt(600)))
}

func TestSQLiteStorage_GetRunsLimit(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveRun(ctx, makeRun(id, "1"), nil))
	}

	runs, err := db.GetRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteStorage_Trades(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	call := domain.NewOption(domain.Call, tsla, decimal.NewFromInt(400), domain.Date(2020, 9, 11))
	trades := []domain.TradeEvent{
		{Date: domain.Date(2020, 9, 3), Action: domain.ActionSell, Security: tsla, Contract: &call, Amount: 1, Price: decimal.NewFromInt(6)},
		{Date: domain.Date(2020, 9, 11), Action: domain.ActionExpire, Security: tsla, Contract: &call, Amount: -1, Price: decimal.Zero},
		{Date: domain.Date(2020, 8, 31), Action: domain.ActionSplit, Security: tsla, Amount: 500, Price: decimal.NewFromInt(5)},
	}

	ctx := context.Background()
	require.NoError(t, db.SaveRun(ctx, makeRun("a", "600"), trades))

	got, err := db.GetTrades(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.ActionSell, got[0].Action)
	require.NotNil(t, got[0].Contract)
	assert.True(t, got[0].Contract.Equal(call))
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, domain.Date(2020, 9, 3), got[0].Date)

	assert.Equal(t, domain.ActionExpire, got[1].Action)
	assert.Equal(t, int64(-1), got[1].Amount)

	assert.Equal(t, domain.ActionSplit, got[2].Action)
	assert.Nil(t, got[2].Contract)
	assert.Equal(t, int64(500), got[2].Amount)
}

func TestSQLiteStorage_GetTrades_UnknownRun(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetTrades(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStorage_DuplicateRunID(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveRun(ctx, makeRun("a", "1"), nil))
	assert.Error(t, db.SaveRun(ctx, makeRun("a", "2"), nil))
}
