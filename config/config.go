// Package config holds the options the bridge consumes. Values come from
// defaults, then an optional TOML file, then BRIDGE_* environment variables.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/bridge-runtime/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BRIDGE_"

// Config is the bridge configuration surface. Only EnableLogging and
// EnableCaching change bridge behavior; MaxRetries and TimeoutMs are read by
// callers that retry or bound calls themselves.
type Config struct {
	EnableLogging bool `toml:"enable_logging" env:"ENABLE_LOGGING"`
	EnableCaching bool `toml:"enable_caching" env:"ENABLE_CACHING"`
	MaxRetries    int  `toml:"max_retries" env:"MAX_RETRIES"`
	TimeoutMs     int  `toml:"timeout_ms" env:"TIMEOUT_MS"`
}

func Default() Config {
	return Config{
		EnableLogging: false,
		EnableCaching: true,
		MaxRetries:    3,
		TimeoutMs:     5000,
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the process environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
		}
		cfg, err = FromTOML(data, cfg)
		if err != nil {
			return Config{}, err
		}
	}

	cfg, err := FromEnv(cfg, nil)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromTOML overlays the keys present in data onto base. Unknown keys are rejected.
func FromTOML(data []byte, base Config) (Config, error) {
	cfg := base
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.ParseFailed("config TOML", err)
	}
	return cfg, nil
}

// FromEnv overlays BRIDGE_* variables onto base. A nil environ reads the
// process environment.
func FromEnv(base Config, environ map[string]string) (Config, error) {
	cfg := base
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse env")
	}
	return cfg, nil
}

// Validate rejects negative retry counts and timeouts.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max_retries cannot be negative")
	}
	if c.TimeoutMs < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "timeout_ms cannot be negative")
	}
	return nil
}

// Timeout returns TimeoutMs as a duration. Zero means no timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
