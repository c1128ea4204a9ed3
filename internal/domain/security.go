package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Security is an underlying instrument, usually a stock or an ETF.
// Two securities are equal when their symbols are.
type Security struct {
	Symbol string
}

// NewSecurity builds a Security for the given ticker.
func NewSecurity(symbol string) Security {
	return Security{Symbol: symbol}
}

func (s Security) String() string {
	return s.Symbol
}

// Quote is a single price observation for a security.
type Quote struct {
	Price decimal.Decimal
	Time  time.Time
}

// Before orders quotes by timestamp.
func (q Quote) Before(other Quote) bool {
	return q.Time.Before(other.Time)
}

// SortQuotes sorts quotes oldest first.
func SortQuotes(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Before(quotes[j])
	})
}

// LastQuote returns the most recent quote, or false when there are none.
func LastQuote(quotes []Quote) (Quote, bool) {
	if len(quotes) == 0 {
		return Quote{}, false
	}
	last := quotes[0]
	for _, q := range quotes[1:] {
		if last.Before(q) {
			last = q
		}
	}
	return last, true
}

// Bar is one trading day of market data: the closing price plus whatever
// indicator columns the preprocessing step produced for that day.
// Indicators may contain NaN during the warm-up period of a lookback window.
type Bar struct {
	Date       time.Time
	Close      decimal.Decimal
	Indicators []float64
}

// Day truncates t to a calendar date in UTC. Every date that enters the
// domain (expirations, snapshot dates, bar dates) goes through Day so that
// time.Time values compare and hash consistently.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date is a shorthand for Day(time.Date(y, m, d, ...)).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// dateKey formats a day as YYYY-MM-DD.
func dateKey(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}
