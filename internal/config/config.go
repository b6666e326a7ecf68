// Package config loads runtime configuration for a connection.
//
// Sources, later overriding earlier: built-in defaults, an optional YAML
// file, and BQLDB_* environment variables. The environment toggles are
// part of the public contract: BQLDB_WIZARD_MODE enables experimental
// constructs, BQLDB_DISABLE_VERSION_CHECK skips the catalog version gate
// (tests only).
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables.
const envPrefix = "BQLDB_"

// Config is the runtime configuration of one connection.
type Config struct {
	// WizardMode enables otherwise-experimental constructs such as
	// ALTER GENERATOR and default-generator DDL.
	WizardMode bool `koanf:"wizard_mode"`

	// DisableVersionCheck opens databases regardless of their recorded
	// catalog schema version. For tests.
	DisableVersionCheck bool `koanf:"disable_version_check"`

	// LogLevel is the minimum slog level: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// defaults are the built-in settings.
func defaults() map[string]any {
	return map[string]any{
		"wizard_mode":           false,
		"disable_version_check": false,
		"log_level":             "info",
	}
}

// Load reads configuration from defaults, an optional YAML file, and the
// environment. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
