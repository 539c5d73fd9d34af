// Package config loads engine configuration and exposes the governance
// parameters through a Provider. Parameters are read at operation time, never
// cached for a position's lifetime, so a reload between calls takes effect on
// the next call.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Params are the governance-elected parameters consumed by the engine.
type Params struct {
	// Fee engine, all in basis points.
	BaseFeeBps     decimal.Decimal `mapstructure:"base_fee_bps"`
	MaxFeeBps      decimal.Decimal `mapstructure:"max_fee_bps"`
	SensitivityBps decimal.Decimal `mapstructure:"sensitivity_bps"`

	// Insurance fund skim, in basis points of each collected fee.
	InsuranceCutBps decimal.Decimal `mapstructure:"insurance_cut_bps"`

	// Rebalancer trigger: relative price divergence from the baseline.
	RebalanceThreshold decimal.Decimal `mapstructure:"rebalance_threshold"`

	// Oracle cache.
	SnapshotWindow int             `mapstructure:"snapshot_window"`
	MinSnapshots   int             `mapstructure:"min_snapshots"`
	MaxPriceAge    time.Duration   `mapstructure:"max_price_age"`
	MinConfidence  decimal.Decimal `mapstructure:"min_confidence"`

	// Swap execution.
	MaxQuoteAge time.Duration   `mapstructure:"max_quote_age"`
	MinReserve  decimal.Decimal `mapstructure:"min_reserve"`

	// Position withdrawal cooldown; zero disables the pending state.
	WithdrawCooldown time.Duration `mapstructure:"withdraw_cooldown"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel         string       `mapstructure:"log_level"`
	AuditDSN         string       `mapstructure:"audit_dsn"`
	RebalanceCron    string       `mapstructure:"rebalance_cron"`
	Server           ServerConfig `mapstructure:"server"`
	Params           Params       `mapstructure:"params"`
}

// DefaultParams returns the parameter set used when configuration omits a
// value.
func DefaultParams() Params {
	return Params{
		BaseFeeBps:         decimal.NewFromInt(30),  // 0.30%
		MaxFeeBps:          decimal.NewFromInt(100), // 1.00%
		SensitivityBps:     decimal.NewFromInt(500),
		InsuranceCutBps:    decimal.NewFromInt(1000), // 10% of each fee
		RebalanceThreshold: decimal.RequireFromString("0.05"),
		SnapshotWindow:     64,
		MinSnapshots:       5,
		MaxPriceAge:        5 * time.Minute,
		MinConfidence:      decimal.RequireFromString("0.5"),
		MaxQuoteAge:        30 * time.Second,
		MinReserve:         decimal.NewFromInt(1),
		WithdrawCooldown:   0,
	}
}

// Validate rejects parameter sets that would break fee or solvency bounds.
func (p Params) Validate() error {
	if p.BaseFeeBps.IsNegative() {
		return fmt.Errorf("base_fee_bps must be non-negative")
	}
	if p.MaxFeeBps.LessThan(p.BaseFeeBps) {
		return fmt.Errorf("max_fee_bps must be >= base_fee_bps")
	}
	if p.InsuranceCutBps.IsNegative() || p.InsuranceCutBps.GreaterThan(decimal.NewFromInt(10000)) {
		return fmt.Errorf("insurance_cut_bps must be within [0, 10000]")
	}
	if p.SnapshotWindow <= 0 {
		return fmt.Errorf("snapshot_window must be positive")
	}
	if p.MinSnapshots <= 1 {
		return fmt.Errorf("min_snapshots must be greater than 1")
	}
	if !p.RebalanceThreshold.IsPositive() {
		return fmt.Errorf("rebalance_threshold must be positive")
	}
	return nil
}

// Provider yields the parameter set current at call time.
type Provider interface {
	Current() Params
}

// Static is a fixed-parameter Provider, used by tests and single-shot tools.
type Static struct {
	P Params
}

func (s Static) Current() Params { return s.P }

// Manager loads configuration via viper and serves the current parameter set
// with hot-reload on config file changes.
type Manager struct {
	logger *zap.Logger
	viper  *viper.Viper
	config atomic.Pointer[Config]
}

// NewManager creates a configuration manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger, viper: viper.New()}
}

// Load reads the config file (optional) and environment overrides, validates,
// and starts the file watcher for hot reload.
func (m *Manager) Load(configPath string) (*Config, error) {
	v := m.viper
	v.SetEnvPrefix("POOLRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := m.unmarshal()
	if err != nil {
		return nil, err
	}
	m.config.Store(cfg)

	if configPath != "" {
		v.OnConfigChange(func(_ fsnotify.Event) {
			reloaded, err := m.unmarshal()
			if err != nil {
				m.logger.Error("Config reload rejected", zap.Error(err))
				return
			}
			m.config.Store(reloaded)
			m.logger.Info("Configuration reloaded")
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func (m *Manager) unmarshal() (*Config, error) {
	var cfg Config
	if err := m.viper.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Current implements Provider against the most recently loaded config.
func (m *Manager) Current() Params {
	cfg := m.config.Load()
	if cfg == nil {
		return DefaultParams()
	}
	return cfg.Params
}

func (m *Manager) setDefaults(v *viper.Viper) {
	d := DefaultParams()
	v.SetDefault("log_level", "info")
	v.SetDefault("audit_dsn", "file::memory:?cache=shared")
	v.SetDefault("rebalance_cron", "@every 1m")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("params.base_fee_bps", d.BaseFeeBps.String())
	v.SetDefault("params.max_fee_bps", d.MaxFeeBps.String())
	v.SetDefault("params.sensitivity_bps", d.SensitivityBps.String())
	v.SetDefault("params.insurance_cut_bps", d.InsuranceCutBps.String())
	v.SetDefault("params.rebalance_threshold", d.RebalanceThreshold.String())
	v.SetDefault("params.snapshot_window", d.SnapshotWindow)
	v.SetDefault("params.min_snapshots", d.MinSnapshots)
	v.SetDefault("params.max_price_age", d.MaxPriceAge.String())
	v.SetDefault("params.min_confidence", d.MinConfidence.String())
	v.SetDefault("params.max_quote_age", d.MaxQuoteAge.String())
	v.SetDefault("params.min_reserve", d.MinReserve.String())
	v.SetDefault("params.withdraw_cooldown", "0s")
}
