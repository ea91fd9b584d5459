package config

import "time"

// Config is the root configuration structure for Warden.
// It contains all configuration sections for the HTTP server, the record
// store, the rule module registry, the audit log, and telemetry settings.
type Config struct {
	// Server contains HTTP API server configuration including listen
	// address, timeouts, and CORS settings.
	Server ServerConfig `yaml:"server"`

	// Store contains configuration for the record store backend.
	Store StoreConfig `yaml:"store"`

	// Rules contains configuration for the rule module registry, including
	// the optional filesystem source for .rego modules.
	Rules RulesConfig `yaml:"rules"`

	// Audit contains configuration for the audit log append queue and
	// retention pruning.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for observability (logging, metrics)
	// and for telemetry summaries.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the API to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:5000", "0.0.0.0:5000").
	// Default: "127.0.0.1:5000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration for the
	// administrative front end.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS settings for the API.
type CORSConfig struct {
	// Enabled enables CORS handling.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is the list of origins allowed to call the API.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxAge is how long (in seconds) preflight results may be cached.
	// Default: 300
	MaxAge int `yaml:"max_age"`
}

// StoreConfig contains configuration for the record store.
type StoreConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path. Ignored for the memory backend.
	// Default: "data/warden.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RulesConfig contains configuration for the rule module registry.
type RulesConfig struct {
	// DefaultQuery is the query evaluated when a caller does not supply one.
	// Default: "data.sandbox.allow"
	DefaultQuery string `yaml:"default_query"`

	// SourceDir is an optional directory of .rego files loaded as rule
	// modules at startup. Empty disables the filesystem source.
	SourceDir string `yaml:"source_dir"`

	// Watch enables hot-reloading of SourceDir on file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period after a file change before modules
	// are reloaded, coalescing editor write bursts.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// AuditConfig contains configuration for the audit log.
type AuditConfig struct {
	// QueueSize is the size of the append queue buffer.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// RetryInterval is the initial delay before retrying a failed append.
	// Retries back off exponentially from this interval.
	// Default: 250ms
	RetryInterval time.Duration `yaml:"retry_interval"`

	// MaxRetryInterval caps the retry backoff.
	// Default: 10s
	MaxRetryInterval time.Duration `yaml:"max_retry_interval"`

	// RetentionDays is how many days of audit entries to keep. Zero keeps
	// entries forever.
	// Default: 0
	RetentionDays int `yaml:"retention_days"`

	// MaxRecords is the maximum number of audit entries to keep. Zero means
	// unlimited.
	// Default: 0
	MaxRecords int `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduled retention pruning
	// (e.g., "0 3 * * *" for daily at 3 AM). Empty disables scheduling.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability and summary configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// SummaryTopN is the number of entries returned in each ranked section
	// of a telemetry summary (top destinations, top syscalls, ...).
	// Default: 10
	SummaryTopN int `yaml:"summary_top_n"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled enables the /metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "warden"
	Namespace string `yaml:"namespace"`
}
