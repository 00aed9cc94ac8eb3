package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CompilerConfig is the top-level configuration for a compiler instance.
//
// It covers only ambient compiler concerns: which token estimator backs
// annotation, how many stability-loop iterations and suspension retries are
// allowed before a tick forces itself stable, and how the compiler logs and
// traces itself. It carries no knowledge of transport, storage, or any
// external collaborator — those are wired by the embedding application.
type CompilerConfig struct {
	Estimator EstimatorConfig `yaml:"estimator"`
	Compile   CompileConfig   `yaml:"compile"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Debug     DebugConfig     `yaml:"debug"`
}

// EstimatorConfig selects and configures the token estimator used by
// internal/tokenest during annotation.
type EstimatorConfig struct {
	// Kind selects the estimator implementation: "default" (ceil(len/4)) or
	// "tiktoken" (BPE-accurate, via github.com/pkoukk/tiktoken-go).
	Kind string `yaml:"kind"`

	// Model names the tiktoken encoding profile to use when Kind is
	// "tiktoken" (e.g. "gpt-4o", "claude"). Ignored otherwise.
	Model string `yaml:"model"`
}

// CompileConfig bounds the compile driver's stability loop.
type CompileConfig struct {
	// MaxIterations is the maximum number of compileUntilStable passes
	// before the tick gives up and returns forcedStable=true. Default: 10.
	MaxIterations int `yaml:"max_iterations"`

	// MaxSuspensionRetries is the maximum number of suspend/resume retries
	// the reconciler allows a single render before aborting the tick with a
	// diagnostic. Default: 10.
	MaxSuspensionRetries int `yaml:"max_suspension_retries"`
}

// LoggingConfig configures the observability.Logger used throughout the
// compiler.
type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"`
	AddSource      bool     `yaml:"add_source"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// TracingConfig configures the observability.Tracer used to trace ticks.
type TracingConfig struct {
	ServiceName    string            `yaml:"service_name"`
	Environment    string            `yaml:"environment"`
	Endpoint       string            `yaml:"endpoint"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Attributes     map[string]string `yaml:"attributes"`
	EnableInsecure bool              `yaml:"enable_insecure"`
}

// DebugConfig toggles diagnostics that are expensive or verbose enough to
// keep off by default.
type DebugConfig struct {
	// LogFiberTree logs the full fiber tree summary after every tick.
	LogFiberTree bool `yaml:"log_fiber_tree"`

	// SerializeOnError writes a hibernation snapshot (internal/serialize)
	// to SnapshotDir whenever a tick aborts on an unrecovered render error.
	SerializeOnError bool `yaml:"serialize_on_error"`

	// SnapshotDir is where SerializeOnError writes snapshots. Default:
	// "./promptc-snapshots".
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Load reads and parses a CompilerConfig from path, applying environment
// variable expansion, defaults, and validation.
func Load(path string) (*CompilerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg CompilerConfig
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a CompilerConfig with defaults applied and nothing else
// set, suitable as a starting point for tests or for a compiler run with no
// config file on disk.
func Default() *CompilerConfig {
	cfg := &CompilerConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *CompilerConfig) {
	if cfg.Estimator.Kind == "" {
		cfg.Estimator.Kind = "default"
	}
	if cfg.Compile.MaxIterations == 0 {
		cfg.Compile.MaxIterations = 10
	}
	if cfg.Compile.MaxSuspensionRetries == 0 {
		cfg.Compile.MaxSuspensionRetries = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "promptc"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Debug.SnapshotDir == "" {
		cfg.Debug.SnapshotDir = "./promptc-snapshots"
	}
}

func applyEnvOverrides(cfg *CompilerConfig) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("PROMPTC_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("PROMPTC_LOG_FORMAT")); value != "" {
		cfg.Logging.Format = value
	}
	if value := strings.TrimSpace(os.Getenv("PROMPTC_OTEL_ENDPOINT")); value != "" {
		cfg.Tracing.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("PROMPTC_ESTIMATOR")); value != "" {
		cfg.Estimator.Kind = value
	}
}

// ConfigValidationError collects every validation issue found in a
// CompilerConfig so callers see all problems in one pass, not one at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *CompilerConfig) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	switch strings.ToLower(strings.TrimSpace(cfg.Estimator.Kind)) {
	case "default", "tiktoken":
	default:
		issues = append(issues, `estimator.kind must be "default" or "tiktoken"`)
	}
	if cfg.Estimator.Kind == "tiktoken" && strings.TrimSpace(cfg.Estimator.Model) == "" {
		issues = append(issues, "estimator.model is required when estimator.kind is \"tiktoken\"")
	}

	if cfg.Compile.MaxIterations < 1 {
		issues = append(issues, "compile.max_iterations must be >= 1")
	}
	if cfg.Compile.MaxSuspensionRetries < 1 {
		issues = append(issues, "compile.max_suspension_retries must be >= 1")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, `logging.level must be "debug", "info", "warn", or "error"`)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "json", "text":
	default:
		issues = append(issues, `logging.format must be "json" or "text"`)
	}

	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
