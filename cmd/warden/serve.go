package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"outpost-hq/warden/pkg/audit"
	"outpost-hq/warden/pkg/config"
	"outpost-hq/warden/pkg/decision"
	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/rules/source"
	"outpost-hq/warden/pkg/server"
	"outpost-hq/warden/pkg/simulation"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry/logging"
	"outpost-hq/warden/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Warden API server",
	Long: `Start the Warden API server with the specified configuration.

The server exposes app and policy management, telemetry ingest and
summaries, rule module management, simulation, live decision evaluation,
and the audit log under /api.

Examples:
  # Start with default config
  warden serve

  # Start with custom config
  warden serve --config /etc/warden/config.yaml

  # Override listen address
  warden serve --listen 0.0.0.0:5000

  # Validate config without starting the server
  warden serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(&cfg.Telemetry.Logging); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Storage backend.
	dataStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer dataStore.Close()

	// Metrics.
	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New(&cfg.Telemetry.Metrics)
	}

	// Rule module registry: persisted modules first, then the optional
	// filesystem source.
	registry := rules.NewRegistry()
	records, err := dataStore.ListRuleModules()
	if err != nil {
		return fmt.Errorf("failed to load rule modules: %w", err)
	}
	if err := registry.Load(records); err != nil {
		return fmt.Errorf("failed to compile stored rule modules: %w", err)
	}

	var watcher *source.Watcher
	if cfg.Rules.SourceDir != "" {
		dirSource := source.NewDirSource(cfg.Rules.SourceDir, nil)
		if err := loadDirModules(registry, dirSource); err != nil {
			return err
		}
		if cfg.Rules.Watch {
			watcher, err = source.NewWatcher(dirSource, cfg.Rules.WatchDebounce)
			if err != nil {
				return fmt.Errorf("failed to create rule watcher: %w", err)
			}
			go func() {
				err := watcher.Watch(context.Background(), func() error {
					return loadDirModules(registry, dirSource)
				})
				if err != nil {
					slog.Error("rule watcher exited", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}
	if m != nil {
		m.SetRuleModulesLoaded(registry.Count())
	}
	fmt.Printf("✓ Rule modules loaded (%d modules)\n", registry.Count())

	// Decision engine with its live spend ledger.
	engine := decision.NewEngine(registry, decision.NewLedger(), m)

	// Audit log and retention.
	auditLog := audit.NewLog(dataStore, cfg.Audit, m)
	defer auditLog.Close()

	pruner := audit.NewPruner(dataStore, cfg.Audit)
	if err := pruner.Start(); err != nil {
		return err
	}
	defer pruner.Stop()

	srv := server.NewServer(cfg, server.Deps{
		Store:    dataStore,
		Registry: registry,
		Engine:   engine,
		Runner:   simulation.NewRunner(m),
		AuditLog: auditLog,
		Metrics:  m,
	})

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ API root: http://%s/api\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

// loadConfig reads the config file, falling back to defaults when the
// default file is absent.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if !rootCmd.PersistentFlags().Changed("config") {
			return config.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config file %q not found", cfgFile)
	}
	return config.LoadConfig(cfgFile)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(&store.SQLiteConfig{
			Path:         cfg.Store.Path,
			MaxOpenConns: cfg.Store.MaxOpenConns,
			BusyTimeout:  cfg.Store.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// loadDirModules merges filesystem modules into the registry on top of the
// stored ones.
func loadDirModules(registry *rules.Registry, dirSource *source.DirSource) error {
	records, err := dirSource.Load()
	if err != nil {
		return fmt.Errorf("failed to load rule directory: %w", err)
	}
	for _, record := range records {
		if err := registry.Add(record); err != nil {
			slog.Warn("skipping rule module", "name", record.Name, "error", err)
		}
	}
	return nil
}
