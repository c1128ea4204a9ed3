package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// Console imprime resultados de simulación en terminal.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
// Con table=false imprime una línea por ejecución.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, table: true}
}

// PrintRun imprime el resultado de una ejecución con su log de eventos.
func (c *Console) PrintRun(name string, res domain.RunResult, trades []domain.TradeEvent) {
	fmt.Fprintf(c.out, "\n%s %s %s → fitness %s (value %s vs hold %s, %d trades)\n",
		name, res.Security, rangeLabel(res.Start, res.End),
		money(res.Fitness), money(res.EndingValue), money(res.Baseline), res.Trades)
	if !c.table {
		return
	}

	c.printTrades(trades)
	if res.Portfolio != nil {
		c.PrintPortfolio(res.Portfolio)
	}
}

// printTrades imprime el log de eventos en orden.
func (c *Console) printTrades(trades []domain.TradeEvent) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  no trades")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Action", "Instrument", "Amount", "Price", "Value")
	for _, e := range trades {
		value := "-"
		if e.Contract != nil {
			value = money(domain.PremiumValue(e.Price, e.Amount))
		}
		table.Append(
			e.Date.Format(time.DateOnly),
			string(e.Action),
			e.Instrument(),
			fmt.Sprintf("%d", e.Amount),
			e.Price.StringFixed(2),
			value,
		)
	}
	table.Render()
}

// PrintPortfolio imprime cash, acciones y contratos abiertos.
func (c *Console) PrintPortfolio(p *domain.Portfolio) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Holding", "Amount", "Collateral", "Last price")

	table.Append("cash", money(p.Cash), "-", "-")
	for sec, amount := range p.Stocks() {
		table.Append(sec.String(), fmt.Sprintf("%d", amount), fmt.Sprintf("%d", p.Collateral(sec)), "-")
	}
	for _, pos := range p.Contracts() {
		table.Append(pos.Contract.String(), fmt.Sprintf("%d", pos.Amount), "-", pos.Price.StringFixed(2))
	}
	table.Render()
}

// PrintLeaderboard imprime las ejecuciones ya ordenadas, las mejores primero.
func (c *Console) PrintLeaderboard(runs []ports.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintf(c.out, "[%s] no runs\n", time.Now().Format("15:04:05"))
		return
	}

	first := runs[0].Result
	fmt.Fprintf(c.out, "\n%d runs on %s %s — best %s, median %s\n",
		len(runs), first.Security, rangeLabel(first.Start, first.End),
		money(first.Fitness), money(runs[len(runs)/2].Result.Fitness))

	if !c.table {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Controller", "Fitness", "Value", "Hold", "Trades", "Decisions", "Run")
	for i, run := range runs {
		res := run.Result
		table.Append(
			fmt.Sprintf("%d", i+1),
			compactName(run.Controller, 24),
			money(res.Fitness),
			money(res.EndingValue),
			money(res.Baseline),
			fmt.Sprintf("%d", res.Trades),
			fmt.Sprintf("%d/%d", res.Decisions, res.Days),
			shortID(run.ID),
		)
	}
	table.Render()
}

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func rangeLabel(start, end time.Time) string {
	return fmt.Sprintf("(%s, %s]", start.Format(time.DateOnly), end.Format(time.DateOnly))
}

// compactName trunca nombres largos para que la tabla no se rompa.
func compactName(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
