package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that point at configuration sources.
const (
	EnvPrefix     = "ZONECORR_"
	EnvConfigFile = EnvPrefix + "CONFIG"
	EnvDotenvFile = EnvPrefix + "ENV_FILE"
	defaultDotenv = ".env"
)

// legacyKeys maps the unprefixed variable names of existing deployments onto
// config keys.
var legacyKeys = map[string]string{
	"DISTANCE":                   "distance",
	"PC_CHARACTERISTIC_LENGTH":   "primary_characteristic_length",
	"PC_MAX_DEVIATION":           "primary_max_deviation",
	"BPRT_CHARACTERISTIC_LENGTH": "secondary_characteristic_length",
	"BPRT_MAX_DEVIATION":         "secondary_max_deviation",
	"USE_TEMP_OFFSETS":           "use_temp_offsets",
	"OFFSET_B":                   "offset_b",
	"OFFSET_C_POS":               "offset_c_pos",
	"OFFSET_C_NEG":               "offset_c_neg",
	"OFFSET_D":                   "offset_d",
	"DEFAULT_RANGE_B_MIN":        "default_range_b_min",
	"DEFAULT_RANGE_B_MAX":        "default_range_b_max",
	"DEFAULT_RANGE_C_MIN":        "default_range_c_min",
	"DEFAULT_RANGE_C_MAX":        "default_range_c_max",
	"DEFAULT_RANGE_D_MIN":        "default_range_d_min",
	"DEFAULT_RANGE_D_MAX":        "default_range_d_max",
}

// Load builds a Config by layering defaults, dotenv, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (ZONECORR_ENV_FILE, default ./.env); never overrides the real environment
//  3. file (YAML) if ZONECORR_CONFIG is set
//  4. legacy unprefixed env (DISTANCE, PC_*, BPRT_*, OFFSET_*, ...)
//  5. env (prefix ZONECORR_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyKeys[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// ZONECORR_PRIMARY_MAX_DEVIATION -> primary_max_deviation (flat keys).
	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(EnvDotenvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotenv
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
