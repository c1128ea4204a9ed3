package engine

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// SplitHandler applies the split schedule of one security to portfolios.
type SplitHandler struct {
	security domain.Security
	splits   map[time.Time]decimal.Decimal
	reporter ports.Reporter
}

// NewSplitHandler indexes the schedule by effective date. Splits with a
// non-positive multiplier are ignored.
func NewSplitHandler(security domain.Security, splits []domain.Split, reporter ports.Reporter) *SplitHandler {
	idx := make(map[time.Time]decimal.Decimal, len(splits))
	for _, s := range splits {
		if !s.Multiplier.IsPositive() {
			slog.Warn("ignoring split with invalid multiplier",
				"security", security.String(),
				"date", s.Date.Format(time.DateOnly),
				"multiplier", s.Multiplier.String(),
			)
			continue
		}
		idx[domain.Day(s.Date)] = s.Multiplier
	}
	return &SplitHandler{security: security, splits: idx, reporter: reporter}
}

// MultiplierOn returns the split multiplier effective on date, if any.
func (h *SplitHandler) MultiplierOn(date time.Time) (decimal.Decimal, bool) {
	m, ok := h.splits[domain.Day(date)]
	return m, ok
}

// CheckAndInvoke adjusts p when a split of the tracked security is effective
// on date. Shares, pledged collateral and contract amounts are multiplied;
// every contract on the security is replaced by a new identity whose strike
// and premium are divided by the multiplier. It returns the multiplier applied.
func (h *SplitHandler) CheckAndInvoke(p *domain.Portfolio, date time.Time) (decimal.Decimal, bool) {
	mult, ok := h.MultiplierOn(date)
	if !ok {
		return decimal.Decimal{}, false
	}

	sec := h.security
	p.SetShares(sec, scale(p.Shares(sec), mult, "shares"))
	p.SetCollateral(sec, scale(p.Collateral(sec), mult, "collateral"))

	// Remove every old identity before inserting the new ones: an adjusted
	// strike may equal the old strike of another position.
	var adjusted []domain.Position
	for _, pos := range p.Contracts() {
		if pos.Contract.Underlying != sec {
			continue
		}
		p.RemovePosition(pos.Contract)
		adjusted = append(adjusted, domain.Position{
			Contract: pos.Contract.Adjusted(mult),
			Amount:   scale(pos.Amount, mult, "contracts"),
			Price:    pos.Price.Div(mult),
		})
	}
	for _, pos := range adjusted {
		p.SetPosition(pos.Contract, pos.Amount, pos.Price)
	}

	slog.Info("stock split applied",
		"security", sec.String(),
		"date", date.Format(time.DateOnly),
		"multiplier", mult.String(),
	)
	if h.reporter != nil {
		h.reporter.Record(domain.TradeEvent{
			Date:     domain.Day(date),
			Action:   domain.ActionSplit,
			Security: sec,
			Amount:   p.Shares(sec),
			Price:    mult,
		})
	}
	return mult, true
}

// scale multiplies an integer amount by the split multiplier. Fractional
// results (reverse splits) are truncated: cash in lieu is not modeled.
func scale(amount int64, mult decimal.Decimal, what string) int64 {
	v := decimal.NewFromInt(amount).Mul(mult)
	if !v.IsInteger() {
		slog.Warn("split leaves a fractional amount, truncating",
			"what", what, "amount", amount, "multiplier", mult.String())
	}
	return v.IntPart()
}
