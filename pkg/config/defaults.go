package config

import "time"

// Default values for the server section.
const (
	DefaultListenAddress   = "127.0.0.1:5000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultCORSMaxAge      = 300
)

// Default values for the store section.
const (
	DefaultStoreBackend = "sqlite"
	DefaultStorePath    = "data/warden.db"
	DefaultMaxOpenConns = 10
	DefaultBusyTimeout  = 5 * time.Second
)

// Default values for the rules section.
const (
	DefaultRuleQuery     = "data.sandbox.allow"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Default values for the audit section.
const (
	DefaultAuditQueueSize        = 1024
	DefaultAuditRetryInterval    = 250 * time.Millisecond
	DefaultAuditMaxRetryInterval = 10 * time.Second
)

// Default values for the telemetry section.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "warden"
	DefaultSummaryTopN      = 10
)

// ApplyDefaults fills in default values for any zero-valued configuration
// fields. It is called by LoadConfig before validation, so a partially
// specified file yields a fully specified configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.CORS.AllowedOrigins == nil {
		cfg.Server.CORS.Enabled = true
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultBusyTimeout
	}

	if cfg.Rules.DefaultQuery == "" {
		cfg.Rules.DefaultQuery = DefaultRuleQuery
	}
	if cfg.Rules.WatchDebounce == 0 {
		cfg.Rules.WatchDebounce = DefaultWatchDebounce
	}

	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = DefaultAuditQueueSize
	}
	if cfg.Audit.RetryInterval == 0 {
		cfg.Audit.RetryInterval = DefaultAuditRetryInterval
	}
	if cfg.Audit.MaxRetryInterval == 0 {
		cfg.Audit.MaxRetryInterval = DefaultAuditMaxRetryInterval
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.SummaryTopN == 0 {
		cfg.Telemetry.SummaryTopN = DefaultSummaryTopN
	}
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
