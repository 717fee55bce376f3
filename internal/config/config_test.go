package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Monitor.BulkChars != 300 {
		t.Errorf("expected bulk_chars 300, got %d", cfg.Monitor.BulkChars)
	}
	if cfg.Monitor.BulkLines != 8 {
		t.Errorf("expected bulk_lines 8, got %d", cfg.Monitor.BulkLines)
	}
	if cfg.Estimate.PerCharMs != 15 || cfg.Estimate.PerLineMs != 150 {
		t.Errorf("unexpected estimate costs: %d/%d", cfg.Estimate.PerCharMs, cfg.Estimate.PerLineMs)
	}
	if cfg.Estimate.MinMs != 1500 || cfg.Estimate.MaxMs != 20000 {
		t.Errorf("unexpected estimate clamp: [%d, %d]", cfg.Estimate.MinMs, cfg.Estimate.MaxMs)
	}
	if cfg.Evaluator.TimeoutSec != 20 {
		t.Errorf("expected evaluator timeout 20s, got %d", cfg.Evaluator.TimeoutSec)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "default is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero bulk chars",
			modify:  func(c *Config) { c.Monitor.BulkChars = 0 },
			wantErr: true,
		},
		{
			name:    "typing threshold above bulk threshold",
			modify:  func(c *Config) { c.Monitor.TypingChars = 400 },
			wantErr: true,
		},
		{
			name:    "inverted estimate clamp",
			modify:  func(c *Config) { c.Estimate.MaxMs = 1000 },
			wantErr: true,
		},
		{
			name:    "zero schedule interval while enabled",
			modify:  func(c *Config) { c.Schedule.IntervalSec = 0 },
			wantErr: true,
		},
		{
			name: "zero schedule interval while disabled",
			modify: func(c *Config) {
				c.Schedule.Enabled = false
				c.Schedule.IntervalSec = 0
			},
			wantErr: false,
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "file output without path",
			modify:  func(c *Config) { c.Logging.Output = "file" },
			wantErr: true,
		},
		{
			name:    "empty socket path",
			modify:  func(c *Config) { c.IPC.SocketPath = "" },
			wantErr: true,
		},
		{
			name: "spool enabled without dir",
			modify: func(c *Config) {
				c.Spool.Enabled = true
				c.Spool.Dir = ""
			},
			wantErr: true,
		},
		{
			name: "evaluator disabled skips evaluator checks",
			modify: func(c *Config) {
				c.Evaluator.Enabled = false
				c.Evaluator.TimeoutSec = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[monitor]
bulk_chars = 500
bulk_lines = 12
typing_chars = 32
typing_fragments = 3
preview_cap = 4000
history_size = 32

[estimate]
per_char_ms = 10
per_line_ms = 100
density = 1.2
min_ms = 1000
max_ms = 30000

[logging]
level = "debug"
format = "json"
output = "stderr"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Monitor.BulkChars != 500 {
		t.Errorf("expected bulk_chars 500, got %d", cfg.Monitor.BulkChars)
	}
	if cfg.Estimate.Density != 1.2 {
		t.Errorf("expected density 1.2, got %f", cfg.Estimate.Density)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}

	// Untouched sections keep defaults.
	if cfg.Evaluator.TimeoutSec != 20 {
		t.Errorf("expected default evaluator timeout, got %d", cfg.Evaluator.TimeoutSec)
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
monitor:
  bulk_chars: 400
  bulk_lines: 8
  typing_chars: 32
  typing_fragments: 3
  preview_cap: 4000
  history_size: 32
schedule:
  enabled: true
  interval_sec: 120
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Monitor.BulkChars != 400 {
		t.Errorf("expected bulk_chars 400, got %d", cfg.Monitor.BulkChars)
	}
	if cfg.Schedule.IntervalSec != 120 {
		t.Errorf("expected interval 120, got %d", cfg.Schedule.IntervalSec)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults, got %v", err)
	}
	if cfg.Monitor.BulkChars != 300 {
		t.Error("expected defaults for missing file")
	}
}

func TestLoadFileInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[[[broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoaderRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[monitor]
bulk_chars = -5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("expected validation error for negative threshold")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("REVIEWD_LOG_LEVEL", "debug")
	t.Setenv("REVIEWD_SOCKET", "/tmp/test.sock")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Logging.Level)
	}
	if cfg.IPC.SocketPath != "/tmp/test.sock" {
		t.Errorf("expected env socket path, got %s", cfg.IPC.SocketPath)
	}
}

func TestDataDirOverride(t *testing.T) {
	t.Setenv("REVIEWD_DATA_DIR", "/tmp/reviewd-test")
	if got := DataDir(); got != "/tmp/reviewd-test" {
		t.Errorf("expected env data dir, got %s", got)
	}
}
