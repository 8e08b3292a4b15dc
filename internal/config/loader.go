package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "CLIENTSCORE_"
	envConfig = envPrefix + "CONFIG"
	keyDelim  = "."
)

// legacyEnv maps unprefixed variables to config keys, lowest precedence
// first. POSTGRES_URL wins over DATABASE_URL.
var legacyEnv = []map[string]string{ //nolint:gochecknoglobals // fixed lookup table
	{"DATABASE_URL": "database_url"},
	{"POSTGRES_URL": "database_url", "CRON_SECRET": "cron_secret"},
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CLIENTSCORE_CONFIG is set
//  3. unprefixed DATABASE_URL, then POSTGRES_URL and CRON_SECRET
//  4. env (prefix CLIENTSCORE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(keyDelim)

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	for _, table := range legacyEnv {
		table := table
		p := env.Provider("", keyDelim, func(s string) string {
			return table[s]
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// CLIENTSCORE_RUN_TIMEOUT_MS -> run_timeout_ms (flat keys)
	envProvider := env.Provider(envPrefix, keyDelim, func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
