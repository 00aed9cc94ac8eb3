package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "promptc.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Estimator.Kind != "default" {
		t.Errorf("Estimator.Kind = %q, want %q", cfg.Estimator.Kind, "default")
	}
	if cfg.Compile.MaxIterations != 10 {
		t.Errorf("Compile.MaxIterations = %d, want 10", cfg.Compile.MaxIterations)
	}
	if cfg.Compile.MaxSuspensionRetries != 10 {
		t.Errorf("Compile.MaxSuspensionRetries = %d, want 10", cfg.Compile.MaxSuspensionRetries)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Tracing.SamplingRate != 1.0 {
		t.Errorf("Tracing.SamplingRate = %v, want 1.0", cfg.Tracing.SamplingRate)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeTempConfig(t, `
estimator:
  kind: tiktoken
  model: gpt-4o
compile:
  max_iterations: 25
  max_suspension_retries: 3
logging:
  level: debug
  format: text
tracing:
  service_name: promptc-test
  endpoint: localhost:4317
  sampling_rate: 0.25
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Estimator.Kind != "tiktoken" || cfg.Estimator.Model != "gpt-4o" {
		t.Errorf("Estimator = %+v, want tiktoken/gpt-4o", cfg.Estimator)
	}
	if cfg.Compile.MaxIterations != 25 {
		t.Errorf("MaxIterations = %d, want 25", cfg.Compile.MaxIterations)
	}
	if cfg.Compile.MaxSuspensionRetries != 3 {
		t.Errorf("MaxSuspensionRetries = %d, want 3", cfg.Compile.MaxSuspensionRetries)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("Tracing.Endpoint = %q, want localhost:4317", cfg.Tracing.Endpoint)
	}
}

func TestLoadUnknownField(t *testing.T) {
	path := writeTempConfig(t, "bogus_field: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CompilerConfig)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(*CompilerConfig) {}, wantErr: false},
		{name: "bad estimator kind", mutate: func(c *CompilerConfig) { c.Estimator.Kind = "bogus" }, wantErr: true},
		{name: "tiktoken without model", mutate: func(c *CompilerConfig) { c.Estimator.Kind = "tiktoken"; c.Estimator.Model = "" }, wantErr: true},
		{name: "zero max iterations", mutate: func(c *CompilerConfig) { c.Compile.MaxIterations = 0 }, wantErr: true},
		{name: "zero suspension retries", mutate: func(c *CompilerConfig) { c.Compile.MaxSuspensionRetries = 0 }, wantErr: true},
		{name: "bad log level", mutate: func(c *CompilerConfig) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad log format", mutate: func(c *CompilerConfig) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "sampling rate out of range", mutate: func(c *CompilerConfig) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `{}`)

	t.Setenv("PROMPTC_LOG_LEVEL", "debug")
	t.Setenv("PROMPTC_LOG_FORMAT", "text")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
}

func TestWatchReload(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")

	received := make(chan *CompilerConfig, 2)
	stop, err := Watch(path, func(cfg *CompilerConfig) {
		received <- cfg
	}, func(error) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer func() { _ = stop() }()

	initial := <-received
	if initial.Logging.Level != "info" {
		t.Errorf("initial Logging.Level = %q, want info", initial.Logging.Level)
	}
}
