package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FACEGATE_CONFIG is set
//  3. env (prefix FACEGATE_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FACEGATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: FACEGATE_HTTP_ADDR, FACEGATE_DB_PATH, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("FACEGATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "facegate_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.Env != "dev" && c.Env != "prod" {
		return errors.New("env must be dev or prod")
	}
	if c.DetectionMode != ModeAccurate && c.DetectionMode != ModeFast {
		return errors.New("detection_mode must be accurate or fast")
	}
	if c.Tolerance <= 0 {
		return errors.New("tolerance must be positive")
	}
	if c.MaxElapsedSeconds <= 0 {
		return errors.New("max_elapsed_seconds must be positive")
	}
	if c.BitTimeoutMS <= 0 {
		return errors.New("bit_timeout_ms must be positive")
	}
	return nil
}
