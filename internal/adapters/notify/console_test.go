package notify_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/callwriter/internal/adapters/notify"
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

var tsla = domain.NewSecurity("TSLA")

func makeRun(id, controller string, fitness int64) ports.RunRecord {
	return ports.RunRecord{
		ID:         id,
		Controller: controller,
		Result: domain.RunResult{
			Security:    tsla,
			Start:       domain.Date(2020, 9, 2),
			End:         domain.Date(2020, 9, 11),
			Days:        7,
			Decisions:   6,
			Trades:      1,
			EndingValue: decimal.NewFromInt(39000 + fitness),
			Baseline:    decimal.NewFromInt(39000),
			Fitness:     decimal.NewFromInt(fitness),
		},
	}
}

func TestConsole_PrintLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	n.PrintLeaderboard([]ports.RunRecord{
		makeRun("3f2a9c1e-0000-4000-8000-000000000000", "linear-7", 600),
		makeRun("b", "hold", 0),
		makeRun("c", "linear-2", -400),
	})

	out := buf.String()
	assert.Contains(t, out, "3 runs on TSLA (2020-09-02, 2020-09-11]")
	assert.Contains(t, out, "linear-7")
	assert.Contains(t, out, "$600.00")
	assert.Contains(t, out, "-$400.00")
	assert.Contains(t, out, "3f2a9c1e")
	assert.NotContains(t, out, "3f2a9c1e-0000")
}

func TestConsole_PrintLeaderboard_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintLeaderboard(nil)
	assert.Contains(t, buf.String(), "no runs")
}

func TestConsole_PrintLeaderboard_LongNameTruncated(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintLeaderboard([]ports.RunRecord{makeRun("a", strings.Repeat("A", 50), 1)})
	assert.Contains(t, buf.String(), "...")
}

func TestConsole_PrintRun(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	call := domain.NewOption(domain.Call, tsla, decimal.NewFromInt(400), domain.Date(2020, 9, 11))
	p := domain.NewPortfolio(decimal.NewFromInt(600), map[domain.Security]int64{tsla: 100})
	p.SetPosition(call, -1, decimal.NewFromInt(6))
	res := makeRun("a", "linear", 600).Result
	res.Portfolio = p

	n.PrintRun("linear", res, []domain.TradeEvent{
		{Date: domain.Date(2020, 9, 3), Action: domain.ActionSell, Security: tsla, Contract: &call, Amount: 1, Price: decimal.NewFromInt(6)},
	})

	out := buf.String()
	assert.Contains(t, out, "fitness $600.00")
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "TSLA $400 CALL 2020-09-11")
	assert.Contains(t, out, "2020-09-03")
	assert.Contains(t, out, "cash")
}

func TestConsole_PrintRun_NoTrades(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintRun("hold", makeRun("a", "hold", 0).Result, nil)
	assert.Contains(t, buf.String(), "no trades")
}
