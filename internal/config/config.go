// Package config defines all configuration for the replay engine. Config is
// loaded from an optional YAML file with every field overridable via
// VIDAR_* environment variables, in the style of
// 0xtitan6-polymarket-mm/internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, matching spec.md §6's enumerated
// options plus the SPEC_FULL.md §4.8 strategy supplement.
type Config struct {
	Strategy StrategyConfig `mapstructure:"strategy"`
	Bus      BusConfig      `mapstructure:"bus"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StrategyConfig tunes the imbalance-reversion strategy (spec.md §4.5, §6).
type StrategyConfig struct {
	LiquidityThreshold float64 `mapstructure:"liquidity_threshold"`
	// ReverseThresholdOverride, when nonzero, replaces the derived
	// 1/LiquidityThreshold exit/entry band (SPEC_FULL.md §4.8).
	ReverseThresholdOverride float64 `mapstructure:"reverse_threshold_override"`
	MinConsecutiveTicks      uint32  `mapstructure:"min_consecutive_ticks"`
	PositionSize             uint32  `mapstructure:"position_size"`
	HoldTimeTicks            uint32  `mapstructure:"hold_time_ticks"`
	ProfitTargetPct          float64 `mapstructure:"profit_target_pct"`
	StopLossPct              float64 `mapstructure:"stop_loss_pct"`
	OrderTimeoutTicks        uint32  `mapstructure:"order_timeout_ticks"`
	MaxPositions             uint32  `mapstructure:"max_positions"`
	InitialCapital           int64   `mapstructure:"initial_capital"`
	HistoryDepth             uint32  `mapstructure:"history_depth"`
}

// ReverseThreshold returns the exit/entry band's lower bound: the override
// if configured, otherwise the derived 1/LiquidityThreshold.
func (s StrategyConfig) ReverseThreshold() float64 {
	if s.ReverseThresholdOverride > 0 {
		return s.ReverseThresholdOverride
	}
	if s.LiquidityThreshold == 0 {
		return 0
	}
	return 1 / s.LiquidityThreshold
}

// BusConfig sizes the MarketDataBus (spec.md §4.4, §6).
type BusConfig struct {
	Capacity            uint32 `mapstructure:"bus_capacity"`
	EmissionTickIntervalNS uint64 `mapstructure:"emission_tick_interval_ns"`
	DepthLevels         int    `mapstructure:"depth_levels"`
}

// LoggingConfig controls zerolog's output level and format, following the
// teacher's own logging conventions (structured, component-tagged).
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Error wraps a configuration failure; every error Load returns is an
// *Error. cmd/replay exits 2 on any Load error per spec.md §6.
type Error struct {
	cause error
}

func (e *Error) Error() string { return fmt.Sprintf("config: %v", e.cause) }
func (e *Error) Unwrap() error { return e.cause }

func defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			LiquidityThreshold: 1.5,
			MinConsecutiveTicks: 5,
			PositionSize:        100,
			HoldTimeTicks:       30,
			ProfitTargetPct:     0.0005,
			StopLossPct:         0.0003,
			OrderTimeoutTicks:   5,
			MaxPositions:        10,
			InitialCapital:      1_000_000 * 10000,
			HistoryDepth:        100,
		},
		Bus: BusConfig{
			Capacity:    1024,
			DepthLevels: 1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from the optional file at path (skipped if
// empty or missing) layered under the built-in defaults, then applies
// VIDAR_* environment overrides, then validates. path == "" uses defaults
// and env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VIDAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaults()
	setDefaultsOn(v, cfg)

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, &Error{cause: fmt.Errorf("read %s: %w", path, err)}
			}
		} else if !os.IsNotExist(statErr) {
			return nil, &Error{cause: statErr}
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return nil, &Error{cause: fmt.Errorf("unmarshal: %w", err)}
	}

	if err := out.Validate(); err != nil {
		return nil, &Error{cause: err}
	}
	return &out, nil
}

func setDefaultsOn(v *viper.Viper, cfg Config) {
	v.SetDefault("strategy.liquidity_threshold", cfg.Strategy.LiquidityThreshold)
	v.SetDefault("strategy.reverse_threshold_override", cfg.Strategy.ReverseThresholdOverride)
	v.SetDefault("strategy.min_consecutive_ticks", cfg.Strategy.MinConsecutiveTicks)
	v.SetDefault("strategy.position_size", cfg.Strategy.PositionSize)
	v.SetDefault("strategy.hold_time_ticks", cfg.Strategy.HoldTimeTicks)
	v.SetDefault("strategy.profit_target_pct", cfg.Strategy.ProfitTargetPct)
	v.SetDefault("strategy.stop_loss_pct", cfg.Strategy.StopLossPct)
	v.SetDefault("strategy.order_timeout_ticks", cfg.Strategy.OrderTimeoutTicks)
	v.SetDefault("strategy.max_positions", cfg.Strategy.MaxPositions)
	v.SetDefault("strategy.initial_capital", cfg.Strategy.InitialCapital)
	v.SetDefault("strategy.history_depth", cfg.Strategy.HistoryDepth)
	v.SetDefault("bus.bus_capacity", cfg.Bus.Capacity)
	v.SetDefault("bus.emission_tick_interval_ns", cfg.Bus.EmissionTickIntervalNS)
	v.SetDefault("bus.depth_levels", cfg.Bus.DepthLevels)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Validate checks value ranges per spec.md §6.
func (c *Config) Validate() error {
	if c.Strategy.LiquidityThreshold < 1.0 {
		return fmt.Errorf("strategy.liquidity_threshold must be >= 1.0")
	}
	if c.Strategy.PositionSize == 0 {
		return fmt.Errorf("strategy.position_size must be > 0")
	}
	if c.Strategy.MaxPositions == 0 {
		return fmt.Errorf("strategy.max_positions must be > 0")
	}
	if c.Bus.Capacity == 0 {
		return fmt.Errorf("bus.bus_capacity must be > 0")
	}
	return nil
}
