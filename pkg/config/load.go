package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, applies WARDEN_* environment variable
// overrides, validates the result, and returns any errors.
//
// The loading sequence is:
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables follow the naming convention
// WARDEN_SECTION_FIELD (e.g., WARDEN_SERVER_LISTEN_ADDRESS) and always
// take precedence over file-based values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WARDEN_SERVER_LISTEN_ADDRESS"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if v := os.Getenv("WARDEN_SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("WARDEN_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("WARDEN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WARDEN_RULES_SOURCE_DIR"); v != "" {
		cfg.Rules.SourceDir = v
	}
	if v := os.Getenv("WARDEN_RULES_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Rules.Watch = b
		}
	}
	if v := os.Getenv("WARDEN_AUDIT_PRUNE_SCHEDULE"); v != "" {
		cfg.Audit.PruneSchedule = v
	}
	if v := os.Getenv("WARDEN_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
	if v := os.Getenv("WARDEN_LOG_FORMAT"); v != "" {
		cfg.Telemetry.Logging.Format = v
	}
}
