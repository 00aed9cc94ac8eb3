// Command promptc is a devtool for the declarative prompt compiler: it
// loads a static prompt document, runs it through pkg/compiler, and prints
// the result in a form useful for debugging a component tree without
// embedding it in a host application.
//
// # Basic Usage
//
// Compile a document to its CompiledStructure:
//
//	promptc compile prompt.yaml
//
// Estimate token cost with a specific encoding:
//
//	promptc estimate prompt.yaml --model gpt-4o
//
// Inspect the committed fiber tree after a compile:
//
//	promptc inspect prompt.yaml
//
// # Environment Variables
//
//   - PROMPTC_CONFIG: path to a CompilerConfig YAML file (default: none,
//     built-in defaults apply)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "promptc",
		Short: "promptc - declarative prompt compiler devtool",
		Long: `promptc loads a static prompt document and runs it through the
declarative prompt compiler, printing the CompiledStructure, a token
estimate, or the committed fiber tree.

Documents are YAML: sections, messages, tools, and ephemeral content. They
cannot describe composites or hooks, since those are Go closures; use
pkg/compiler directly from Go code to exercise those.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildCompileCmd(),
		buildEstimateCmd(),
		buildInspectCmd(),
	)

	return rootCmd
}
