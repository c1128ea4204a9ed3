package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del backtester.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig define qué se simula y con qué cartera inicial.
type SimulationConfig struct {
	Symbol        string  `yaml:"symbol"`
	DataDir       string  `yaml:"data_dir"`       // raíz con un subdirectorio por símbolo
	InitialCash   float64 `yaml:"initial_cash"`   // efectivo al arrancar cada ejecución
	InitialShares int64   `yaml:"initial_shares"` // acciones al arrancar (100 = un contrato cubierto)
	Days          int     `yaml:"days"`           // duración de la ventana aleatoria, en días naturales
	Start         string  `yaml:"start"`          // YYYY-MM-DD; con End fija la ventana
	End           string  `yaml:"end"`
	IVHorizons    []int   `yaml:"iv_horizons"` // vencimientos (días) cuya IV entra en la observación
}

// EvaluationConfig controla la evaluación de la población.
type EvaluationConfig struct {
	Population       int     `yaml:"population"`
	Workers          int     `yaml:"workers"` // 0 = runtime.NumCPU()
	Seed             uint64  `yaml:"seed"`    // 0 = aleatoria
	Genome           string  `yaml:"genome"`  // ruta a un genoma YAML para una ejecución única
	ChainReadsPerSec float64 `yaml:"chain_reads_per_sec"`
}

// StorageConfig controla dónde se persisten los resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// InitialCash devuelve el efectivo inicial como decimal.
func (c *Config) InitialCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Simulation.InitialCash)
}

// Window devuelve la ventana fija start/end si está configurada.
func (c *Config) Window() (start, end time.Time, ok bool, err error) {
	if c.Simulation.Start == "" || c.Simulation.End == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	start, err = time.Parse(time.DateOnly, c.Simulation.Start)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("config.Window: start: %w", err)
	}
	end, err = time.Parse(time.DateOnly, c.Simulation.End)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("config.Window: end: %w", err)
	}
	return start, end, true, nil
}

func (c *Config) validate() error {
	if c.Simulation.InitialShares < 0 {
		return fmt.Errorf("simulation.initial_shares must not be negative")
	}
	if c.Simulation.InitialCash < 0 {
		return fmt.Errorf("simulation.initial_cash must not be negative")
	}
	for _, h := range c.Simulation.IVHorizons {
		if h <= 0 {
			return fmt.Errorf("simulation.iv_horizons: %d is not a positive day count", h)
		}
	}
	if _, _, _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CALLWRITER_DATA_DIR"); v != "" {
		cfg.Simulation.DataDir = v
	}
	if v := os.Getenv("CALLWRITER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CALLWRITER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.Workers = n
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Simulation.Symbol == "" {
		cfg.Simulation.Symbol = "TSLA"
	}
	if cfg.Simulation.DataDir == "" {
		cfg.Simulation.DataDir = "data"
	}
	if cfg.Simulation.InitialShares == 0 {
		cfg.Simulation.InitialShares = 100
	}
	if cfg.Simulation.Days <= 0 {
		cfg.Simulation.Days = 90
	}
	if cfg.Evaluation.Population <= 0 {
		cfg.Evaluation.Population = 50
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "callwriter.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
