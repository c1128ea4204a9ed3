package controller

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

// Genome is the on-disk form of a Linear controller.
type Genome struct {
	Name    string      `yaml:"name"`
	Inputs  int         `yaml:"inputs"`
	Weights [][]float64 `yaml:"weights"` // one row per output
	Bias    []float64   `yaml:"bias"`
}

// Linear is a single-layer controller: out = tanh(W·obs + b).
type Linear struct {
	name    string
	inputs  int
	weights [][]float64
	bias    []float64
}

var _ ports.Controller = (*Linear)(nil)

// NewLinear validates a genome.
func NewLinear(g Genome) (*Linear, error) {
	if g.Inputs <= 0 {
		return nil, fmt.Errorf("controller.NewLinear: %q: inputs must be positive", g.Name)
	}
	if len(g.Weights) != domain.ActionSize {
		return nil, fmt.Errorf("controller.NewLinear: %q: want %d weight rows, got %d",
			g.Name, domain.ActionSize, len(g.Weights))
	}
	for i, row := range g.Weights {
		if len(row) != g.Inputs {
			return nil, fmt.Errorf("controller.NewLinear: %q: weight row %d has %d columns, want %d",
				g.Name, i, len(row), g.Inputs)
		}
	}
	bias := g.Bias
	if bias == nil {
		bias = make([]float64, domain.ActionSize)
	}
	if len(bias) != domain.ActionSize {
		return nil, fmt.Errorf("controller.NewLinear: %q: want %d biases, got %d",
			g.Name, domain.ActionSize, len(bias))
	}
	return &Linear{name: g.Name, inputs: g.Inputs, weights: g.Weights, bias: bias}, nil
}

// Name identifies the controller in logs and stored runs.
func (l *Linear) Name() string {
	return l.name
}

// Inputs returns the observation length the weights were trained for.
func (l *Linear) Inputs() int {
	return l.inputs
}

// Activate maps an observation to (buy, sell, hold, delta, theta).
// Components beyond the trained input count are ignored and missing ones
// count as zero.
func (l *Linear) Activate(obs []float64) []float64 {
	n := min(len(obs), l.inputs)
	out := make([]float64, domain.ActionSize)
	for i, row := range l.weights {
		sum := l.bias[i]
		for j := 0; j < n; j++ {
			sum += row[j] * obs[j]
		}
		out[i] = math.Tanh(sum)
	}
	return out
}

// Genome returns a copy of the controller parameters.
func (l *Linear) Genome() Genome {
	weights := make([][]float64, len(l.weights))
	for i, row := range l.weights {
		weights[i] = append([]float64(nil), row...)
	}
	return Genome{
		Name:    l.name,
		Inputs:  l.inputs,
		Weights: weights,
		Bias:    append([]float64(nil), l.bias...),
	}
}

// LoadGenome reads a YAML genome file.
func LoadGenome(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controller.LoadGenome: read %q: %w", path, err)
	}
	var g Genome
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("controller.LoadGenome: parse %q: %w", path, err)
	}
	if g.Name == "" {
		g.Name = path
	}
	return NewLinear(g)
}

// SaveGenome writes the controller as YAML.
func SaveGenome(path string, l *Linear) error {
	data, err := yaml.Marshal(l.Genome())
	if err != nil {
		return fmt.Errorf("controller.SaveGenome: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("controller.SaveGenome: write %q: %w", path, err)
	}
	return nil
}

// RandomPopulation draws n controllers with weights uniform in [-1, 1).
func RandomPopulation(rng *rand.Rand, n, inputs int) ([]*Linear, error) {
	if n <= 0 {
		return nil, errors.New("controller.RandomPopulation: population must be positive")
	}
	pop := make([]*Linear, 0, n)
	for k := 0; k < n; k++ {
		g := Genome{
			Name:    fmt.Sprintf("linear-%03d", k),
			Inputs:  inputs,
			Weights: make([][]float64, domain.ActionSize),
			Bias:    make([]float64, domain.ActionSize),
		}
		for i := range g.Weights {
			g.Weights[i] = make([]float64, inputs)
			for j := range g.Weights[i] {
				g.Weights[i][j] = rng.Float64()*2 - 1
			}
			g.Bias[i] = rng.Float64()*2 - 1
		}
		l, err := NewLinear(g)
		if err != nil {
			return nil, err
		}
		pop = append(pop, l)
	}
	return pop, nil
}
