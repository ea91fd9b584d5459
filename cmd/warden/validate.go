package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"outpost-hq/warden/pkg/rules"
)

var validateFlags struct {
	file   string
	module string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a Rego rule module file",
	Long: `Validate a Rego rule module file without loading it into a server.

The file is parsed and compiled exactly as the registry would compile it,
so a module that validates here will also activate cleanly.

Examples:
  # Validate a rule file
  warden validate --file rules/noexec.rego

  # Validate with an explicit module path
  warden validate --file rules/noexec.rego --module policy.noexec`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "path to the .rego file to validate (required)")
	validateCmd.Flags().StringVarP(&validateFlags.module, "module", "m", "", "module path used during compilation (defaults to the file name)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(validateFlags.file)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}

	module := validateFlags.module
	if module == "" {
		base := filepath.Base(validateFlags.file)
		module = "policy." + strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := rules.Validate(module, string(source)); err != nil {
		var compileErr *rules.CompileError
		if errors.As(err, &compileErr) && compileErr.Row > 0 {
			fmt.Printf("✗ %s:%d:%d: %s\n", validateFlags.file, compileErr.Row, compileErr.Col, compileErr.Message)
		} else {
			fmt.Printf("✗ %s: %v\n", validateFlags.file, err)
		}
		os.Exit(1)
	}

	fmt.Printf("✓ %s is valid\n", validateFlags.file)
	return nil
}
