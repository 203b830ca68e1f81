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

// Environment variables naming the optional YAML files and the env prefixes.
const (
	ConfigFileEnv       = "ECOINVEST_CONFIG"
	EnvPrefix           = "ECOINVEST_"
	ClientConfigFileEnv = "ECOINVEST_CLIENT_CONFIG"
	ClientEnvPrefix     = "ECOINVEST_CLIENT_"
)

// Load builds the server Config by layering, low to high precedence:
//  1. defaults (New())
//  2. YAML file named by ECOINVEST_CONFIG
//  3. env vars prefixed ECOINVEST_ (ECOINVEST_QUEUE_SIZE -> queue_size)
func Load(_ context.Context) (*Config, error) {
	cfg := New()
	if err := layer(cfg, ConfigFileEnv, EnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient builds the CLI ClientConfig the same way using
// ECOINVEST_CLIENT_CONFIG and the ECOINVEST_CLIENT_ prefix.
func LoadClient(_ context.Context) (*ClientConfig, error) {
	cfg := NewClient()
	if err := layer(cfg, ClientConfigFileEnv, ClientEnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func layer(target any, fileEnv, prefix string) error {
	k := koanf.New(".")

	if path := os.Getenv(fileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Keys stay flat so underscores match the koanf struct tags.
	lowered := strings.ToLower(prefix)
	envProvider := env.Provider(prefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), lowered)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendSQLite:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == BackendSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must be set for the sqlite backend", ErrInvalidConfig)
	case c.TrainRatio <= 0 || c.TrainRatio > 1:
		return fmt.Errorf("%w: train_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
