// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"

	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text, json or console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Distance is the spacing between adjacent zones.
	Distance float64 `koanf:"distance"`

	// Per-mode influence constants.
	PrimaryCharacteristicLength   float64 `koanf:"primary_characteristic_length"`
	PrimaryMaxDeviation           float64 `koanf:"primary_max_deviation"`
	SecondaryCharacteristicLength float64 `koanf:"secondary_characteristic_length"`
	SecondaryMaxDeviation         float64 `koanf:"secondary_max_deviation"`

	// Default working ranges, offsets relative to the target.
	DefaultRangeBMin float64 `koanf:"default_range_b_min"`
	DefaultRangeBMax float64 `koanf:"default_range_b_max"`
	DefaultRangeCMin float64 `koanf:"default_range_c_min"`
	DefaultRangeCMax float64 `koanf:"default_range_c_max"`
	DefaultRangeDMin float64 `koanf:"default_range_d_min"`
	DefaultRangeDMax float64 `koanf:"default_range_d_max"`

	// EnforceDefaultRanges makes the default ranges select the range-aware
	// strategy. When false only saved ranges do.
	EnforceDefaultRanges bool `koanf:"enforce_default_ranges"`

	// UseTempOffsets shifts optimisation targets when no range is in effect.
	UseTempOffsets bool    `koanf:"use_temp_offsets"`
	OffsetB        float64 `koanf:"offset_b"`
	OffsetCPos     float64 `koanf:"offset_c_pos"`
	OffsetCNeg     float64 `koanf:"offset_c_neg"`
	OffsetD        float64 `koanf:"offset_d"`

	// Solver tuning.
	SolverMaxIterations     int     `koanf:"solver_max_iterations"`
	SolverFunctionTolerance float64 `koanf:"solver_function_tolerance"`
	SolverPenaltyWeight     float64 `koanf:"solver_penalty_weight"`

	// MaxSessions bounds active outputs; 0 means unbounded.
	MaxSessions int `koanf:"max_sessions"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                      "info",
		LogFormat:                     "text",
		Addr:                          ":9080",
		Distance:                      5,
		PrimaryCharacteristicLength:   10,
		PrimaryMaxDeviation:           1,
		SecondaryCharacteristicLength: 8,
		SecondaryMaxDeviation:         1.5,
		DefaultRangeBMin:              0,
		DefaultRangeBMax:              2,
		DefaultRangeCMin:              -1,
		DefaultRangeCMax:              1,
		DefaultRangeDMin:              -1,
		DefaultRangeDMax:              0,
		OffsetB:                       2,
		OffsetCPos:                    1,
		OffsetCNeg:                    -1,
		OffsetD:                       -1,
		SolverMaxIterations:           1000,
		SolverFunctionTolerance:       1e-8,
		SolverPenaltyWeight:           1000,
		MaxSessions:                   0,
	}
}

// Validate checks every field the service depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json", "console":
	default:
		return fmt.Errorf("%w: log_format must be text, json or console, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Physics(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.DefaultRanges(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.SolverMaxIterations <= 0 {
		return fmt.Errorf("%w: solver_max_iterations must be positive", ErrInvalidConfig)
	}
	if c.SolverFunctionTolerance <= 0 {
		return fmt.Errorf("%w: solver_function_tolerance must be positive", ErrInvalidConfig)
	}
	if c.SolverPenaltyWeight < 0 {
		return fmt.Errorf("%w: solver_penalty_weight must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Physics builds the physical constants table.
func (c *Config) Physics() (*thermal.Physics, error) {
	return thermal.NewPhysics(c.Distance,
		thermal.ModeConstants{CharacteristicLength: c.PrimaryCharacteristicLength, MaxDeviation: c.PrimaryMaxDeviation},
		thermal.ModeConstants{CharacteristicLength: c.SecondaryCharacteristicLength, MaxDeviation: c.SecondaryMaxDeviation},
	)
}

// DefaultRanges returns the configured fallback ranges.
func (c *Config) DefaultRanges() (ranges.Ranges, error) {
	return ranges.FromFlat([6]float64{
		c.DefaultRangeBMin, c.DefaultRangeBMax,
		c.DefaultRangeCMin, c.DefaultRangeCMax,
		c.DefaultRangeDMin, c.DefaultRangeDMax,
	})
}

// Offsets returns the target offset table, or nil when offsets are disabled.
func (c *Config) Offsets() *solver.Offsets {
	if !c.UseTempOffsets {
		return nil
	}
	return &solver.Offsets{B: c.OffsetB, CPos: c.OffsetCPos, CNeg: c.OffsetCNeg, D: c.OffsetD}
}

// SolverOptions maps solver tuning onto solver options.
func (c *Config) SolverOptions() []solver.Option {
	return []solver.Option{
		solver.WithMaxIterations(c.SolverMaxIterations),
		solver.WithFunctionTolerance(c.SolverFunctionTolerance),
		solver.WithPenaltyWeight(c.SolverPenaltyWeight),
	}
}
