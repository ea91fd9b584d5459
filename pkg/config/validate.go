package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first problem found.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateStore(&cfg.Store); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if cfg.Audit.QueueSize < 1 {
		return fmt.Errorf("audit.queue_size must be at least 1, got %d", cfg.Audit.QueueSize)
	}
	if cfg.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", cfg.Audit.RetentionDays)
	}
	if cfg.Audit.MaxRecords < 0 {
		return fmt.Errorf("audit.max_records must not be negative, got %d", cfg.Audit.MaxRecords)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not a valid host:port: %w", cfg.ListenAddress, err)
	}
	return nil
}

func validateStore(cfg *StoreConfig) error {
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			return fmt.Errorf("store.path must not be empty for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of \"memory\", \"sqlite\", got %q", cfg.Backend)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q", cfg.Logging.Format)
	}
	if cfg.SummaryTopN < 1 {
		return fmt.Errorf("telemetry.summary_top_n must be at least 1, got %d", cfg.SummaryTopN)
	}
	return nil
}
