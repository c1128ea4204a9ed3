package domain

import (
	"fmt"
	"math"
)

// ActionSize is the length of a controller output: buy, sell, hold, delta, theta.
const ActionSize = 5

// Intent is the trade decision derived from a controller output.
type Intent uint8

const (
	IntentHold Intent = iota
	IntentBuy
	IntentSell
)

func (i Intent) String() string {
	switch i {
	case IntentBuy:
		return "buy"
	case IntentSell:
		return "sell"
	}
	return "hold"
}

// Action is a decoded controller output.
type Action struct {
	Buy         float64
	Sell        float64
	Hold        float64
	DeltaTarget float64
	ThetaTarget float64
}

// ParseAction decodes a raw controller output vector.
func ParseAction(out []float64) (Action, error) {
	if len(out) < ActionSize {
		return Action{}, fmt.Errorf("domain.ParseAction: want %d outputs, got %d", ActionSize, len(out))
	}
	return Action{
		Buy:         out[0],
		Sell:        out[1],
		Hold:        out[2],
		DeltaTarget: out[3],
		ThetaTarget: out[4],
	}, nil
}

// Intent returns the strictly dominant decision. Buy wins when it beats both
// sell and hold, sell likewise; everything else, ties and NaN included, holds.
func (a Action) Intent() Intent {
	switch {
	case a.Buy > a.Sell && a.Buy > a.Hold:
		return IntentBuy
	case a.Sell > a.Buy && a.Sell > a.Hold:
		return IntentSell
	}
	return IntentHold
}

// Scale is the min/max of one column used for min-max normalization.
type Scale struct {
	Min float64
	Max float64
}

// Normalize maps x into [-1, 1].
func (s Scale) Normalize(x float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return 2*((x-s.Min)/(s.Max-s.Min)) - 1
}

// Denormalize is the inverse of Normalize.
func (s Scale) Denormalize(x float64) float64 {
	return ((s.Max-s.Min)*(x+1))/2 + s.Min
}

// Scales maps column names to their normalization bounds.
type Scales map[string]Scale

// Normalize scales x by the named column, or returns x unchanged when the
// column has no bounds.
func (s Scales) Normalize(column string, x float64) float64 {
	sc, ok := s[column]
	if !ok {
		return x
	}
	return sc.Normalize(x)
}

// HasNaN reports whether any component is NaN.
func HasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
