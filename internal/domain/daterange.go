package domain

import (
	"fmt"
	"time"
)

// DateRange is a simulation window. Start is exclusive and End inclusive,
// matching how market data is filtered.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range of whole days.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return DateRange{}, fmt.Errorf("domain.NewDateRange: end %s not after start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return DateRange{Start: start, End: end}, nil
}

// Contains reports whether t falls in (Start, End].
func (r DateRange) Contains(t time.Time) bool {
	t = Day(t)
	return t.After(r.Start) && !t.After(r.End)
}

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

func (r DateRange) String() string {
	return fmt.Sprintf("(%s, %s]", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// TradingDays returns the dates of bars, in the order given.
func TradingDays(bars []Bar) []time.Time {
	days := make([]time.Time, len(bars))
	for i, b := range bars {
		days[i] = Day(b.Date)
	}
	return days
}
