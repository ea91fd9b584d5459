package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - policy decision and telemetry engine for sandboxed apps",
	Long: `Warden governs sandboxed third-party applications: it registers apps,
attaches access-control policies, ingests behavioral telemetry, evaluates
events against declarative rules to produce allow/deny decisions, and
records every decision in an append-only audit trail.

Candidate rule modules can be validated and simulated against recorded
event batches before they are activated.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
