package controller

import (
	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// Fixed returns the same action every day.
type Fixed struct {
	name string
	out  []float64
}

var _ ports.Controller = (*Fixed)(nil)

// NewFixed creates a controller that always emits out.
func NewFixed(name string, out []float64) *Fixed {
	return &Fixed{name: name, out: append([]float64(nil), out...)}
}

// Hold never trades: the buy-and-hold benchmark.
func Hold() *Fixed {
	return NewFixed("hold", []float64{0, 0, 1, 0, 0})
}

// Writer sells a call whenever it holds none, targeting delta and theta.
func Writer(delta, theta float64) *Fixed {
	return NewFixed("writer", []float64{0, 1, 0, delta, theta})
}

func (f *Fixed) Name() string {
	return f.name
}

func (f *Fixed) Activate([]float64) []float64 {
	out := make([]float64, max(len(f.out), domain.ActionSize))
	copy(out, f.out)
	return out
}
