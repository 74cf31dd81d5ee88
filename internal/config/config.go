// Package config loads the thetaflow YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"thetaflow/internal/strategy"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for thetaflow.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Strategy StrategyConfig `yaml:"strategy"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StrategyConfig holds the covered-call selection parameters.
type StrategyConfig struct {
	Symbol               string  `yaml:"symbol"`
	MaxContracts         int     `yaml:"max_contracts"`
	TargetProbability    float64 `yaml:"target_probability"`
	LiquidityThreshold   int64   `yaml:"liquidity_threshold"`
	MoneynessBuffer      float64 `yaml:"moneyness_buffer"`
	MinDaysToExpiry      float64 `yaml:"min_days_to_expiry"`
	VolatilityCap        float64 `yaml:"volatility_cap"`
	EarningsBlackoutDays int     `yaml:"earnings_blackout_days"`
	EarningsDate         string  `yaml:"earnings_date"` // YYYY-MM-DD, optional
	FeePerContract       float64 `yaml:"fee_per_contract"`
	RiskFreeRate         float64 `yaml:"risk_free_rate"`
}

// BacktestConfig defines the historical simulation window and portfolio.
type BacktestConfig struct {
	StartDate        string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate          string  `yaml:"end_date"`   // YYYY-MM-DD
	InitialCapital   float64 `yaml:"initial_capital"`
	InitialShares    int     `yaml:"initial_shares"`
	DecisionLeadDays int     `yaml:"decision_lead_days"`

	// ImpliedVol sets the flat volatility for synthetic backtest chains;
	// zero estimates it from realized volatility.
	ImpliedVol float64 `yaml:"implied_vol"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is provided: TSLA
// covered calls over the trailing year with the standard conservative
// selection parameters.
func Default() *Config {
	now := time.Now().UTC()
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/thetaflow.db",
		},
		Alpaca: Alpaca{
			RateLimitPerMin: 200,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Strategy: StrategyConfig{
			Symbol:               "TSLA",
			MaxContracts:         2,
			TargetProbability:    0.90,
			LiquidityThreshold:   1000,
			MoneynessBuffer:      1.05,
			MinDaysToExpiry:      1,
			VolatilityCap:        5.0,
			EarningsBlackoutDays: 5,
			FeePerContract:       0.65,
			RiskFreeRate:         0.05,
		},
		Backtest: BacktestConfig{
			StartDate:        now.AddDate(-1, 0, 0).Format("2006-01-02"),
			EndDate:          now.Format("2006-01-02"),
			InitialCapital:   10000,
			InitialShares:    200,
			DecisionLeadDays: 5,
		},
	}
}

// Load reads the YAML configuration file at the given path into the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take highest priority. These are the
	// canonical names used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation and conversions
// ---------------------------------------------------------------------------

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("config: strategy.symbol is required")
	}
	if err := c.StrategyParams().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Backtest.InitialShares < 0 {
		return fmt.Errorf("config: backtest.initial_shares %d, must be >= 0", c.Backtest.InitialShares)
	}
	if c.Backtest.InitialCapital < 0 {
		return fmt.Errorf("config: backtest.initial_capital %v, must be >= 0", c.Backtest.InitialCapital)
	}
	if _, _, err := c.BacktestWindow(); err != nil {
		return err
	}
	if _, err := c.EarningsDate(); err != nil {
		return err
	}
	return nil
}

// StrategyParams converts the strategy section into selector parameters.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		MaxContracts:       c.Strategy.MaxContracts,
		TargetProbability:  c.Strategy.TargetProbability,
		LiquidityThreshold: c.Strategy.LiquidityThreshold,
		MoneynessBuffer:    c.Strategy.MoneynessBuffer,
		MinTimeToExpiry:    c.Strategy.MinDaysToExpiry / 365,
		VolatilityCap:      c.Strategy.VolatilityCap,
		EarningsBlackout:   time.Duration(c.Strategy.EarningsBlackoutDays) * 24 * time.Hour,
		FeePerContract:     c.Strategy.FeePerContract,
		RiskFreeRate:       c.Strategy.RiskFreeRate,
	}
}

// BacktestWindow parses the backtest date range.
func (c *Config) BacktestWindow() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: backtest.start_date: %w", err)
	}
	end, err = time.Parse("2006-01-02", c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: backtest.end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("config: backtest window %s..%s is inverted",
			c.Backtest.StartDate, c.Backtest.EndDate)
	}
	return start, end, nil
}

// EarningsDate parses the optional earnings date; nil when unset.
func (c *Config) EarningsDate() (*time.Time, error) {
	if c.Strategy.EarningsDate == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", c.Strategy.EarningsDate)
	if err != nil {
		return nil, fmt.Errorf("config: strategy.earnings_date: %w", err)
	}
	return &d, nil
}
