package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "TSLA", cfg.Simulation.Symbol)
	assert.Equal(t, "data", cfg.Simulation.DataDir)
	assert.Equal(t, int64(100), cfg.Simulation.InitialShares)
	assert.Equal(t, 90, cfg.Simulation.Days)
	assert.Equal(t, 50, cfg.Evaluation.Population)
	assert.Equal(t, "callwriter.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.InitialCash().IsZero())

	_, _, ok, err := cfg.Window()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
simulation:
  symbol: AAPL
  initial_cash: 2500.5
  initial_shares: 200
  start: "2020-06-01"
  end: "2020-09-30"
  iv_horizons: [10, 30]
evaluation:
  population: 8
  workers: 3
  seed: 42
  chain_reads_per_sec: 50
`))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Simulation.Symbol)
	assert.Equal(t, "2500.5", cfg.InitialCash().String())
	assert.Equal(t, int64(200), cfg.Simulation.InitialShares)
	assert.Equal(t, []int{10, 30}, cfg.Simulation.IVHorizons)
	assert.Equal(t, 8, cfg.Evaluation.Population)
	assert.Equal(t, 3, cfg.Evaluation.Workers)
	assert.Equal(t, uint64(42), cfg.Evaluation.Seed)
	assert.Equal(t, 50.0, cfg.Evaluation.ChainReadsPerSec)

	start, end, ok, err := cfg.Window()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2020-06-01", start.Format("2006-01-02"))
	assert.Equal(t, "2020-09-30", end.Format("2006-01-02"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CALLWRITER_DATA_DIR", "/srv/data")
	t.Setenv("CALLWRITER_DSN", ":memory:")
	t.Setenv("CALLWRITER_WORKERS", "7")

	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/srv/data", cfg.Simulation.DataDir)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, 7, cfg.Evaluation.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative shares": "simulation:\n  initial_shares: -1\n",
		"negative cash":   "simulation:\n  initial_cash: -5\n",
		"bad horizon":     "simulation:\n  iv_horizons: [0]\n",
		"bad start":       "simulation:\n  start: 2020/06/01\n  end: \"2020-09-30\"\n",
		"bad yaml":        "simulation: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
