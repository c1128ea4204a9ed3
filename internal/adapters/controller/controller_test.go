package controller_test

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/callwriter/internal/adapters/controller"
	"github.com/alejandrodnm/callwriter/internal/domain"
)

func genome(inputs int) controller.Genome {
	g := controller.Genome{Name: "test", Inputs: inputs, Weights: make([][]float64, domain.ActionSize)}
	for i := range g.Weights {
		g.Weights[i] = make([]float64, inputs)
	}
	return g
}

func TestLinear_Activate(t *testing.T) {
	g := genome(2)
	g.Weights[1] = []float64{1, -1} // sell
	g.Bias = []float64{0, 0, 0.1, 0, 0}
	l, err := controller.NewLinear(g)
	require.NoError(t, err)

	out := l.Activate([]float64{2, 0.5})

	require.Len(t, out, domain.ActionSize)
	assert.InDelta(t, math.Tanh(1.5), out[1], 1e-12)
	assert.InDelta(t, math.Tanh(0.1), out[2], 1e-12)

	action, err := domain.ParseAction(out)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSell, action.Intent())
}

func TestLinear_ActivateToleratesLengthMismatch(t *testing.T) {
	g := genome(3)
	g.Weights[0] = []float64{1, 1, 1}
	l, err := controller.NewLinear(g)
	require.NoError(t, err)

	assert.InDelta(t, math.Tanh(1), l.Activate([]float64{1})[0], 1e-12)
	assert.InDelta(t, math.Tanh(3), l.Activate([]float64{1, 1, 1, 99})[0], 1e-12)
}

func TestNewLinear_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*controller.Genome)
	}{
		{"no inputs", func(g *controller.Genome) { g.Inputs = 0 }},
		{"missing row", func(g *controller.Genome) { g.Weights = g.Weights[:4] }},
		{"short row", func(g *controller.Genome) { g.Weights[2] = []float64{1} }},
		{"bad bias", func(g *controller.Genome) { g.Bias = []float64{1, 2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := genome(2)
			tt.mutate(&g)
			_, err := controller.NewLinear(g)
			assert.Error(t, err)
		})
	}
}

func TestGenome_SaveAndLoad(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	pop, err := controller.RandomPopulation(rng, 1, 4)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "best.yaml")

	require.NoError(t, controller.SaveGenome(path, pop[0]))
	loaded, err := controller.LoadGenome(path)
	require.NoError(t, err)

	assert.Equal(t, pop[0].Genome(), loaded.Genome())
	obs := []float64{0.1, -0.2, 0.3, 1}
	assert.Equal(t, pop[0].Activate(obs), loaded.Activate(obs))
}

func TestLoadGenome_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inputs: 1
weights:
  - [0]
  - [0]
  - [1]
  - [0.5]
  - [-1]
`), 0o644))

	l, err := controller.LoadGenome(path)

	require.NoError(t, err)
	assert.Equal(t, path, l.Name(), "unnamed genomes are named after their file")
	assert.Equal(t, 1, l.Inputs())
	out := l.Activate([]float64{1})
	assert.InDelta(t, math.Tanh(1), out[2], 1e-12)
}

func TestLoadGenome_Missing(t *testing.T) {
	_, err := controller.LoadGenome(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRandomPopulation(t *testing.T) {
	pop, err := controller.RandomPopulation(rand.New(rand.NewPCG(1, 1)), 10, 6)
	require.NoError(t, err)
	require.Len(t, pop, 10)

	names := map[string]bool{}
	for _, l := range pop {
		names[l.Name()] = true
		for _, row := range l.Genome().Weights {
			for _, w := range row {
				assert.GreaterOrEqual(t, w, -1.0)
				assert.Less(t, w, 1.0)
			}
		}
	}
	assert.Len(t, names, 10)

	_, err = controller.RandomPopulation(rand.New(rand.NewPCG(1, 1)), 0, 6)
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	action, err := domain.ParseAction(controller.Hold().Activate(nil))
	require.NoError(t, err)
	assert.Equal(t, domain.IntentHold, action.Intent())

	action, err = domain.ParseAction(controller.Writer(0.3, -1.5).Activate(nil))
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSell, action.Intent())
	assert.Equal(t, 0.3, action.DeltaTarget)
	assert.Equal(t, -1.5, action.ThetaTarget)
}
