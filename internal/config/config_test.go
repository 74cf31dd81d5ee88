package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/thetaflow/data"
  sqlite_path: "/tmp/thetaflow/thetaflow.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  rate_limit_per_min: 100
logging:
  level: "debug"
  format: "text"
strategy:
  symbol: "TSLA"
  max_contracts: 3
  target_probability: 0.85
  liquidity_threshold: 500
  earnings_date: "2024-07-23"
backtest:
  start_date: "2024-01-02"
  end_date: "2024-06-28"
  initial_capital: 25000
  initial_shares: 300
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, want := cfg.Storage.DataDir, "/tmp/thetaflow/data"; got != want {
		t.Errorf("Storage.DataDir = %q, want %q", got, want)
	}
	if got, want := cfg.Alpaca.APIKey, "test-key"; got != want {
		t.Errorf("Alpaca.APIKey = %q, want %q", got, want)
	}
	if got, want := cfg.Alpaca.RateLimitPerMin, 100; got != want {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want %d", got, want)
	}
	if got, want := cfg.Logging.Level, "debug"; got != want {
		t.Errorf("Logging.Level = %q, want %q", got, want)
	}
	if got, want := cfg.Strategy.MaxContracts, 3; got != want {
		t.Errorf("Strategy.MaxContracts = %d, want %d", got, want)
	}
	if got, want := cfg.Strategy.TargetProbability, 0.85; got != want {
		t.Errorf("Strategy.TargetProbability = %v, want %v", got, want)
	}
	if got, want := cfg.Backtest.InitialShares, 300; got != want {
		t.Errorf("Backtest.InitialShares = %d, want %d", got, want)
	}

	// Fields absent from the file keep their defaults.
	if got, want := cfg.Strategy.MoneynessBuffer, 1.05; got != want {
		t.Errorf("Strategy.MoneynessBuffer = %v, want %v", got, want)
	}
	if got, want := cfg.Strategy.FeePerContract, 0.65; got != want {
		t.Errorf("Strategy.FeePerContract = %v, want %v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "strategy: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: "file-key"
  api_secret: "file-secret"
`)

	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("SQLITE_PATH", "/env/thetaflow.db")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, want := cfg.Alpaca.APIKey, "env-key"; got != want {
		t.Errorf("Alpaca.APIKey = %q, want %q", got, want)
	}
	if got, want := cfg.Alpaca.APISecret, "env-secret"; got != want {
		t.Errorf("Alpaca.APISecret = %q, want %q", got, want)
	}
	if got, want := cfg.Storage.DataDir, "/env/data"; got != want {
		t.Errorf("Storage.DataDir = %q, want %q", got, want)
	}
	if got, want := cfg.Storage.SQLitePath, "/env/thetaflow.db"; got != want {
		t.Errorf("Storage.SQLitePath = %q, want %q", got, want)
	}
	if got, want := cfg.Logging.Level, "warn"; got != want {
		t.Errorf("Logging.Level = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Strategy.Symbol = "" }},
		{"bad probability", func(c *Config) { c.Strategy.TargetProbability = 1.5 }},
		{"negative shares", func(c *Config) { c.Backtest.InitialShares = -1 }},
		{"negative capital", func(c *Config) { c.Backtest.InitialCapital = -100 }},
		{"inverted window", func(c *Config) {
			c.Backtest.StartDate = "2024-06-28"
			c.Backtest.EndDate = "2024-01-02"
		}},
		{"bad start date", func(c *Config) { c.Backtest.StartDate = "not-a-date" }},
		{"bad earnings date", func(c *Config) { c.Strategy.EarningsDate = "2024/07/23" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestStrategyParams(t *testing.T) {
	cfg := Default()
	cfg.Strategy.EarningsBlackoutDays = 5
	cfg.Strategy.MinDaysToExpiry = 1

	p := cfg.StrategyParams()
	if got, want := p.EarningsBlackout, 5*24*time.Hour; got != want {
		t.Errorf("EarningsBlackout = %v, want %v", got, want)
	}
	if got, want := p.MinTimeToExpiry, 1.0/365; got != want {
		t.Errorf("MinTimeToExpiry = %v, want %v", got, want)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default params should validate: %v", err)
	}
}

func TestBacktestWindow(t *testing.T) {
	cfg := Default()
	cfg.Backtest.StartDate = "2024-01-02"
	cfg.Backtest.EndDate = "2024-06-28"

	start, end, err := cfg.BacktestWindow()
	if err != nil {
		t.Fatalf("BacktestWindow() error = %v", err)
	}
	if got, want := start, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("start = %v, want %v", got, want)
	}
	if got, want := end, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("end = %v, want %v", got, want)
	}
}
