// Package config loads the salusctl / host-process configuration: the
// optional capacity cap, admission gating, gossip settings, and log level.
// Grounded on Vistara-Labs-hypercore's viper wiring (internal/command/root.go)
// and its file-based, defaulted-and-validated config shape
// (pkg/gpu/config.go) — the teacher itself carries no config package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/salus-sched/salus/resources"
)

// EnvPrefix is the environment variable prefix viper binds against, e.g.
// SALUS_ADMISSION_DISABLED.
const EnvPrefix = "SALUS"

// Config is the salusctl / host-process configuration.
type Config struct {
	// Capacity optionally caps device-registry limits, keyed by the
	// canonical "<type>:<kind>:<index>" tag form (§6). A nil/empty map
	// leaves the registry's own limits unconstrained.
	Capacity resources.Resources

	Admission struct {
		Disabled bool
	}

	Gossip struct {
		Enabled          bool
		AnnounceInterval time.Duration
		DHTPort          int
	}

	Logging struct {
		Level string
	}
}

// rawConfig mirrors the YAML/env shape before Capacity's string-keyed map is
// parsed into resources.Resources; viper cannot unmarshal directly into a
// map keyed by a non-string, non-JSON-native type.
type rawConfig struct {
	Capacity  map[string]int64 `mapstructure:"capacity"`
	Admission struct {
		Disabled bool `mapstructure:"disabled"`
	} `mapstructure:"admission"`
	Gossip struct {
		Enabled          bool          `mapstructure:"enabled"`
		AnnounceInterval time.Duration `mapstructure:"announceInterval"`
		DHTPort          int           `mapstructure:"dhtPort"`
	} `mapstructure:"gossip"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Defaults applies the same fallback values Load applies when a key is
// absent from both the config file and the environment.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Gossip.AnnounceInterval = 30 * time.Second
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads configPath (a YAML file) if it exists, layers in
// SALUS_-prefixed environment overrides, and returns a validated Config.
// A missing config file is not an error — Defaults() alone is a valid
// configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	// AutomaticEnv only consults keys viper already knows about; a default
	// per key lets Unmarshal pick up its environment override.
	v.SetDefault("admission.disabled", false)
	v.SetDefault("gossip.enabled", false)
	v.SetDefault("gossip.announceInterval", 30*time.Second)
	v.SetDefault("gossip.dhtPort", 0)
	v.SetDefault("logging.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var raw rawConfig
	raw.Gossip.AnnounceInterval = 30 * time.Second
	raw.Logging.Level = "info"
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg := &Config{}
	cfg.Admission.Disabled = raw.Admission.Disabled
	cfg.Gossip.Enabled = raw.Gossip.Enabled
	cfg.Gossip.AnnounceInterval = raw.Gossip.AnnounceInterval
	cfg.Gossip.DHTPort = raw.Gossip.DHTPort
	cfg.Logging.Level = raw.Logging.Level
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if len(raw.Capacity) > 0 {
		cfg.Capacity = make(resources.Resources, len(raw.Capacity))
		for key, qty := range raw.Capacity {
			// viper lowercases every key it reads; the canonical tag form
			// is upper-case.
			tag, err := resources.ParseTag(strings.ToUpper(key))
			if err != nil {
				return nil, fmt.Errorf("config: capacity key %q: %w", key, err)
			}
			cfg.Capacity[tag] = qty
		}
		cfg.Capacity = resources.RemoveInvalid(cfg.Capacity)
	}

	return cfg, nil
}
