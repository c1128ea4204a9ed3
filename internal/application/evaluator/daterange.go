package evaluator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
)

// DateRangeFactory draws simulation windows from the trading days of a
// training set. Every window ends on a trading day; the start is a plain
// calendar day that need not have a close.
type DateRangeFactory struct {
	days []time.Time
	span int // calendar days between the first and last trading day
}

// NewDateRangeFactory indexes the trading days, oldest first.
func NewDateRangeFactory(days []time.Time) (*DateRangeFactory, error) {
	if len(days) < 2 {
		return nil, errors.New("evaluator.NewDateRangeFactory: need at least two trading days")
	}
	sorted := make([]time.Time, len(days))
	for i, day := range days {
		sorted[i] = domain.Day(day)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	span := int(sorted[len(sorted)-1].Sub(sorted[0]).Hours() / 24)
	return &DateRangeFactory{days: sorted, span: span}, nil
}

// Span returns the calendar days covered by the training set.
func (f *DateRangeFactory) Span() int {
	return f.span
}

// ByEndTarget maps endTarget, a day offset into the training span, onto the
// trading day at the same relative position and ends the window there.
func (f *DateRangeFactory) ByEndTarget(duration, endTarget int) domain.DateRange {
	i := int(math.Round(float64(endTarget)/float64(f.span)*float64(len(f.days)) - 1))
	i = max(0, min(i, len(f.days)-1))
	end := f.days[i]
	return domain.DateRange{Start: end.AddDate(0, 0, -duration), End: end}
}

// Random draws a window of duration calendar days.
func (f *DateRangeFactory) Random(rng *rand.Rand, duration int) (domain.DateRange, error) {
	if duration <= 0 || duration > f.span {
		return domain.DateRange{}, fmt.Errorf("evaluator.Random: duration %d outside (0, %d]", duration, f.span)
	}
	endTarget := duration + rng.IntN(f.span-duration+1)
	return f.ByEndTarget(duration, endTarget), nil
}
