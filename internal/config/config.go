// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/quantforge/trendfollow/internal/backtest"
	"github.com/quantforge/trendfollow/internal/execution"
	"github.com/quantforge/trendfollow/internal/quality"
	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	Indicators IndicatorConfig  `yaml:"indicators"`
	Costs      CostsConfig      `yaml:"costs"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Data       DataConfig       `yaml:"data"`
	Quality    QualityConfig    `yaml:"quality"`
	Report     ReportConfig     `yaml:"report"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AccountConfig holds simulated-account settings.
type AccountConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	RiskFactor      float64 `yaml:"risk_factor"`
	ForceCloseAtEnd bool    `yaml:"force_close_at_end"`
}

// IndicatorConfig holds the indicator window lengths in trading days.
type IndicatorConfig struct {
	EMAFast       int `yaml:"ema_fast"`
	EMASlow       int `yaml:"ema_slow"`
	DonchianEntry int `yaml:"donchian_entry"`
	DonchianExit  int `yaml:"donchian_exit"`
	ATRPeriod     int `yaml:"atr_period"`
}

// CostsConfig holds the per-side transaction cost model.
type CostsConfig struct {
	CommissionPerContract  float64 `yaml:"commission_per_contract"`
	ExchangeFeePerContract float64 `yaml:"exchange_fee_per_contract"`
	SlippageBps            float64 `yaml:"slippage_bps"`
}

// StrategyConfig selects the signal rules.
type StrategyConfig struct {
	Variant     string `yaml:"variant"` // crossover | breakout | core
	AllowShorts bool   `yaml:"allow_shorts"`
}

// DataConfig holds storage and download settings.
type DataConfig struct {
	DatabasePath    string   `yaml:"database_path"`
	StartDate       string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate         string   `yaml:"end_date"`   // YYYY-MM-DD, empty for today
	Instruments     []string `yaml:"instruments"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
}

// QualityConfig holds the data-quality screen thresholds.
type QualityConfig struct {
	MaxDailyReturn float64 `yaml:"max_daily_return"`
	MaxGapDays     int     `yaml:"max_gap_days"`
	MinHistoryDays int     `yaml:"min_history_days"`
}

// ReportConfig holds the statistics settings.
type ReportConfig struct {
	TradingDaysPerYear int     `yaml:"trading_days_per_year"`
	RiskFreeRate       float64 `yaml:"risk_free_rate"`
	MinPoints          int     `yaml:"min_points"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Default returns the reference configuration: Clenow windows and risk
// factor, default exchange costs, the core strategy over the full universe.
func Default() *Config {
	names := make([]string, 0)
	for _, spec := range types.DefaultUniverse() {
		names = append(names, spec.Name)
	}
	return &Config{
		Account: AccountConfig{
			InitialCapital:  100000,
			RiskFactor:      0.002,
			ForceCloseAtEnd: true,
		},
		Indicators: IndicatorConfig{
			EMAFast:       50,
			EMASlow:       100,
			DonchianEntry: 100,
			DonchianExit:  50,
			ATRPeriod:     20,
		},
		Costs: CostsConfig{
			CommissionPerContract:  0.85,
			ExchangeFeePerContract: 1.50,
			SlippageBps:            5,
		},
		Strategy: StrategyConfig{
			Variant:     "core",
			AllowShorts: true,
		},
		Data: DataConfig{
			DatabasePath:    "trendfollow.db",
			StartDate:       "2001-01-01",
			Instruments:     names,
			RateLimitPerSec: 2,
		},
		Quality: QualityConfig{
			MaxDailyReturn: 0.15,
			MaxGapDays:     5,
			MinHistoryDays: 252,
		},
		Report: ReportConfig{
			TradingDaysPerYear: 252,
			MinPoints:          252,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Environment variables in
// the form $VAR or ${VAR} are expanded before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Account validation
	if c.Account.InitialCapital <= 0 {
		errs = append(errs, "account.initial_capital must be positive")
	}
	if c.Account.RiskFactor <= 0 || c.Account.RiskFactor > 0.05 {
		errs = append(errs, "account.risk_factor must be between 0 and 0.05 (5%)")
	}

	// Indicator validation
	if c.Indicators.EMAFast <= 0 || c.Indicators.EMASlow <= 0 ||
		c.Indicators.DonchianEntry <= 0 || c.Indicators.DonchianExit <= 0 ||
		c.Indicators.ATRPeriod <= 0 {
		errs = append(errs, "indicators: all windows must be positive")
	}
	if c.Indicators.EMAFast >= c.Indicators.EMASlow {
		errs = append(errs, "indicators.ema_fast must be shorter than indicators.ema_slow")
	}
	if c.Indicators.DonchianExit >= c.Indicators.DonchianEntry {
		errs = append(errs, "indicators.donchian_exit must be shorter than indicators.donchian_entry")
	}

	// Cost validation
	if c.Costs.CommissionPerContract < 0 || c.Costs.ExchangeFeePerContract < 0 || c.Costs.SlippageBps < 0 {
		errs = append(errs, "costs: components must not be negative")
	}

	// Strategy validation
	switch c.Strategy.Variant {
	case "crossover", "breakout", "core":
	default:
		errs = append(errs, fmt.Sprintf("strategy.variant '%s' is not supported", c.Strategy.Variant))
	}

	// Data validation
	if c.Data.DatabasePath == "" {
		errs = append(errs, "data.database_path is required")
	}
	if c.Data.RateLimitPerSec <= 0 {
		errs = append(errs, "data.rate_limit_per_sec must be positive")
	}
	for _, name := range c.Data.Instruments {
		if _, err := types.FindInstrument(name); err != nil {
			errs = append(errs, fmt.Sprintf("data.instruments: '%s' is not in the universe", name))
		}
	}

	// Quality validation
	if c.Quality.MaxDailyReturn <= 0 {
		errs = append(errs, "quality.max_daily_return must be positive")
	}
	if c.Quality.MaxGapDays <= 0 {
		errs = append(errs, "quality.max_gap_days must be positive")
	}
	if c.Quality.MinHistoryDays <= 0 {
		errs = append(errs, "quality.min_history_days must be positive")
	}

	// Report validation
	if c.Report.TradingDaysPerYear <= 0 {
		errs = append(errs, "report.trading_days_per_year must be positive")
	}
	if c.Report.MinPoints <= 0 {
		errs = append(errs, "report.min_points must be positive")
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be a valid TCP port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ToBacktestConfig converts the account, indicator and cost sections into an
// engine configuration.
func (c *Config) ToBacktestConfig() backtest.Config {
	return backtest.Config{
		InitialCapital:  decimal.NewFromFloat(c.Account.InitialCapital),
		RiskFactor:      decimal.NewFromFloat(c.Account.RiskFactor),
		ForceCloseAtEnd: c.Account.ForceCloseAtEnd,
		Indicators: series.Params{
			EMAFast:       c.Indicators.EMAFast,
			EMASlow:       c.Indicators.EMASlow,
			DonchianEntry: c.Indicators.DonchianEntry,
			DonchianExit:  c.Indicators.DonchianExit,
			ATRPeriod:     c.Indicators.ATRPeriod,
		},
		Costs: execution.CostConfig{
			CommissionPerContract:  decimal.NewFromFloat(c.Costs.CommissionPerContract),
			ExchangeFeePerContract: decimal.NewFromFloat(c.Costs.ExchangeFeePerContract),
			SlippageBps:            decimal.NewFromFloat(c.Costs.SlippageBps),
		},
	}
}

// ToReportParams converts the report section.
func (c *Config) ToReportParams() backtest.ReportParams {
	return backtest.ReportParams{
		TradingDaysPerYear: c.Report.TradingDaysPerYear,
		RiskFreeRate:       decimal.NewFromFloat(c.Report.RiskFreeRate),
		MinPoints:          c.Report.MinPoints,
	}
}

// ToQualityConfig converts the quality section.
func (c *Config) ToQualityConfig() quality.Config {
	return quality.Config{
		MaxDailyReturn: decimal.NewFromFloat(c.Quality.MaxDailyReturn),
		MaxGapDays:     c.Quality.MaxGapDays,
		MinHistoryDays: c.Quality.MinHistoryDays,
	}
}
