package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kestrel-labs/promptc/internal/config"
	"github.com/kestrel-labs/promptc/internal/docbuild"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/internal/observability"
	"github.com/kestrel-labs/promptc/internal/tokenest"
	"github.com/kestrel-labs/promptc/pkg/compiler"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// processMetrics is shared across every Compiler the CLI constructs in this
// process: observability.Metrics registers its collectors against the
// global Prometheus registry, so building more than one per process would
// panic on the second registration.
var (
	processMetricsOnce sync.Once
	processMetrics     *observability.Metrics
)

func sharedMetrics() *observability.Metrics {
	processMetricsOnce.Do(func() { processMetrics = observability.NewMetrics() })
	return processMetrics
}

func resolveConfigPath(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return os.Getenv("PROMPTC_CONFIG")
}

func loadCompilerConfig(path string) (*config.CompilerConfig, error) {
	path = resolveConfigPath(path)
	if strings.TrimSpace(path) == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildEstimator(cfg *config.CompilerConfig) (tokenest.Estimator, error) {
	switch cfg.Estimator.Kind {
	case "", "default":
		return tokenest.DefaultEstimator, nil
	case "tiktoken":
		est, err := tokenest.NewTiktokenEstimator(cfg.Estimator.Model)
		if err != nil {
			return nil, fmt.Errorf("build tiktoken estimator: %w", err)
		}
		return est.AsEstimator(), nil
	default:
		return nil, fmt.Errorf("unknown estimator kind %q", cfg.Estimator.Kind)
	}
}

func loadDocumentNode(path string) (node.Node, error) {
	doc, err := docbuild.Load(path)
	if err != nil {
		return node.Node{}, err
	}
	return docbuild.Build(doc), nil
}

// newCompilerFromConfig builds the Compiler the CLI runs, wiring the
// process-lifetime observability stack (logging, tracing, metrics) from
// cfg.Logging/cfg.Tracing instead of the bare Options defaults, since one
// CLI invocation is one process and so safely owns the global Prometheus
// registry observability.Metrics registers against.
func newCompilerFromConfig(cfg *config.CompilerConfig, logger *slog.Logger) (*compiler.Compiler, error) {
	estimator, err := buildEstimator(cfg)
	if err != nil {
		return nil, err
	}

	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		AddSource:      cfg.Logging.AddSource,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})
	tracer, _ := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Attributes:     cfg.Tracing.Attributes,
		EnableInsecure: cfg.Tracing.EnableInsecure,
	})

	return compiler.New(compiler.Options{
		DebugMode:          cfg.Debug.LogFiberTree,
		MaxIterations:      cfg.Compile.MaxIterations,
		MaxSuspenseRetries: cfg.Compile.MaxSuspensionRetries,
		Estimator:          estimator,
		Logger:             logger,
		ObsLogger:          obsLogger,
		Tracer:             tracer,
		Metrics:            sharedMetrics(),
	}), nil
}

func buildCompileCmd() *cobra.Command {
	var configPath string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "compile <document.yaml>",
		Short: "Compile a prompt document to its CompiledStructure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCompilerConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			root, err := loadDocumentNode(args[0])
			if err != nil {
				return err
			}

			c, err := newCompilerFromConfig(cfg, slog.Default())
			if err != nil {
				return err
			}

			result, err := c.CompileUntilStable(context.Background(), root, &hookrt.TickState{TickNumber: 1})
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			out := cmd.OutOrStdout()
			if result.ForcedStable {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: stability loop forced stable after %d iterations: %s\n",
					result.Iterations, strings.Join(result.Reasons, "; "))
			}
			return writeJSON(out, result.Compiled, pretty)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a CompilerConfig YAML file (or PROMPTC_CONFIG)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	return cmd
}

func buildEstimateCmd() *cobra.Command {
	var configPath string
	var model string

	cmd := &cobra.Command{
		Use:   "estimate <document.yaml>",
		Short: "Compile a document and print its total token estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCompilerConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if model != "" {
				cfg.Estimator.Kind = "tiktoken"
				cfg.Estimator.Model = model
			}
			root, err := loadDocumentNode(args[0])
			if err != nil {
				return err
			}

			c, err := newCompilerFromConfig(cfg, slog.Default())
			if err != nil {
				return err
			}

			result, err := c.CompileUntilStable(context.Background(), root, &hookrt.TickState{TickNumber: 1})
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			total := 0
			if result.Compiled.TotalTokens != nil {
				total = *result.Compiled.TotalTokens
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a CompilerConfig YAML file (or PROMPTC_CONFIG)")
	cmd.Flags().StringVar(&model, "model", "", "tiktoken model name (forces estimator kind to tiktoken)")
	return cmd
}

func buildInspectCmd() *cobra.Command {
	var configPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <document.yaml>",
		Short: "Compile a document and dump the committed fiber tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCompilerConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			root, err := loadDocumentNode(args[0])
			if err != nil {
				return err
			}

			c, err := newCompilerFromConfig(cfg, slog.Default())
			if err != nil {
				return err
			}

			if _, err := c.CompileUntilStable(context.Background(), root, &hookrt.TickState{TickNumber: 1}); err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			snapshot := c.SerializeFiberTree()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, snapshot, true)
			}
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(snapshot)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a CompilerConfig YAML file (or PROMPTC_CONFIG)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the fiber tree as JSON instead of YAML")
	return cmd
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
