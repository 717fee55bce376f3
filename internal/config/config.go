// Package config handles configuration loading, validation, and management
// for reviewd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Monitor configuration for bulk-insert classification.
	Monitor MonitorConfig `toml:"monitor" json:"monitor" yaml:"monitor"`

	// Estimate configuration for review window sizing.
	Estimate EstimateConfig `toml:"estimate" json:"estimate" yaml:"estimate"`

	// Schedule configuration for the session milestone timer.
	Schedule ScheduleConfig `toml:"schedule" json:"schedule" yaml:"schedule"`

	// Evaluator configuration for the external verdict service.
	Evaluator EvaluatorConfig `toml:"evaluator" json:"evaluator" yaml:"evaluator"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Spool configuration for file-based event intake.
	Spool SpoolConfig `toml:"spool" json:"spool" yaml:"spool"`

	// Journal configuration for the audit database.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Metrics configuration for the Prometheus endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Notify configuration for desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// MonitorConfig holds classification thresholds. These are fixed values,
// never adaptive.
type MonitorConfig struct {
	// BulkChars: insertions of at least this many characters are bulk.
	BulkChars int `toml:"bulk_chars" json:"bulk_chars" yaml:"bulk_chars"`

	// BulkLines: insertions of at least this many newlines are bulk.
	BulkLines int `toml:"bulk_lines" json:"bulk_lines" yaml:"bulk_lines"`

	// TypingChars: typing events insert at most this many characters.
	TypingChars int `toml:"typing_chars" json:"typing_chars" yaml:"typing_chars"`

	// TypingFragments: typing events carry at most this many fragments.
	TypingFragments int `toml:"typing_fragments" json:"typing_fragments" yaml:"typing_fragments"`

	// PreviewCap limits the review prompt preview, in characters.
	PreviewCap int `toml:"preview_cap" json:"preview_cap" yaml:"preview_cap"`

	// HistorySize is how many insertion records to retain.
	HistorySize int `toml:"history_size" json:"history_size" yaml:"history_size"`
}

// EstimateConfig holds review-time estimation parameters.
type EstimateConfig struct {
	// PerCharMs is the reading cost per inserted character.
	PerCharMs int `toml:"per_char_ms" json:"per_char_ms" yaml:"per_char_ms"`

	// PerLineMs is the reading cost per inserted line.
	PerLineMs int `toml:"per_line_ms" json:"per_line_ms" yaml:"per_line_ms"`

	// Density scales estimates for denser syntaxes (1.0 = plain text).
	Density float64 `toml:"density" json:"density" yaml:"density"`

	// MinMs is the window floor in milliseconds.
	MinMs int `toml:"min_ms" json:"min_ms" yaml:"min_ms"`

	// MaxMs is the window ceiling in milliseconds.
	MaxMs int `toml:"max_ms" json:"max_ms" yaml:"max_ms"`
}

// ScheduleConfig holds milestone scheduler settings.
type ScheduleConfig struct {
	// Enabled turns the session milestone timer on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// IntervalSec is the milestone interval in seconds.
	IntervalSec int `toml:"interval_sec" json:"interval_sec" yaml:"interval_sec"`
}

// EvaluatorConfig holds external evaluator settings. The API key itself is
// taken from ANTHROPIC_API_KEY, never from the config file.
type EvaluatorConfig struct {
	// Enabled turns summary evaluation on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Model is the evaluator model name.
	Model string `toml:"model" json:"model" yaml:"model"`

	// MaxTokens bounds the verdict length.
	MaxTokens int `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`

	// TimeoutSec bounds each evaluator request, in seconds.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// MaxCodeBytes caps the forwarded code payload.
	MaxCodeBytes int `toml:"max_code_bytes" json:"max_code_bytes" yaml:"max_code_bytes"`

	// SubmissionsPerMinute limits summary submissions (0 = unlimited).
	SubmissionsPerMinute int `toml:"submissions_per_minute" json:"submissions_per_minute" yaml:"submissions_per_minute"`
}

// IPCConfig holds control socket settings.
type IPCConfig struct {
	// SocketPath is the unix socket the daemon listens on.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// SpoolConfig holds file-based intake settings.
type SpoolConfig struct {
	// Enabled turns the spool watcher on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Dir is the directory editor integrations drop event files into.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
}

// JournalConfig holds audit journal settings.
type JournalConfig struct {
	// Enabled turns the audit journal on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the sqlite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled turns the scrape endpoint on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Addr is the listen address for /metrics.
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	// Enabled turns desktop notifications on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// Default returns the standard configuration.
func Default() *Config {
	dataDir := DataDir()

	return &Config{
		Monitor: MonitorConfig{
			BulkChars:       300,
			BulkLines:       8,
			TypingChars:     32,
			TypingFragments: 3,
			PreviewCap:      4000,
			HistorySize:     32,
		},
		Estimate: EstimateConfig{
			PerCharMs: 15,
			PerLineMs: 150,
			Density:   1.0,
			MinMs:     1500,
			MaxMs:     20000,
		},
		Schedule: ScheduleConfig{
			Enabled:     true,
			IntervalSec: 60,
		},
		Evaluator: EvaluatorConfig{
			Enabled:              true,
			Model:                "claude-3-5-haiku-20241022",
			MaxTokens:            1024,
			TimeoutSec:           20,
			MaxCodeBytes:         2 << 20,
			SubmissionsPerMinute: 6,
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(dataDir, "reviewd.sock"),
		},
		Spool: SpoolConfig{
			Enabled: false,
			Dir:     filepath.Join(dataDir, "spool"),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "journal.db"),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9477",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DataDir returns the reviewd data directory, honoring REVIEWD_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("REVIEWD_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reviewd"
	}
	return filepath.Join(home, ".reviewd")
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.BulkChars <= 0 {
		errs = append(errs, errors.New("monitor.bulk_chars must be positive"))
	}
	if c.Monitor.BulkLines <= 0 {
		errs = append(errs, errors.New("monitor.bulk_lines must be positive"))
	}
	if c.Monitor.TypingChars < 0 {
		errs = append(errs, errors.New("monitor.typing_chars must not be negative"))
	}
	if c.Monitor.TypingChars >= c.Monitor.BulkChars {
		errs = append(errs, errors.New("monitor.typing_chars must be below monitor.bulk_chars"))
	}
	if c.Monitor.TypingFragments <= 0 {
		errs = append(errs, errors.New("monitor.typing_fragments must be positive"))
	}
	if c.Monitor.PreviewCap <= 0 {
		errs = append(errs, errors.New("monitor.preview_cap must be positive"))
	}
	if c.Monitor.HistorySize <= 0 {
		errs = append(errs, errors.New("monitor.history_size must be positive"))
	}

	if c.Estimate.PerCharMs < 0 || c.Estimate.PerLineMs < 0 {
		errs = append(errs, errors.New("estimate costs must not be negative"))
	}
	if c.Estimate.MinMs <= 0 {
		errs = append(errs, errors.New("estimate.min_ms must be positive"))
	}
	if c.Estimate.MaxMs < c.Estimate.MinMs {
		errs = append(errs, errors.New("estimate.max_ms must be at least estimate.min_ms"))
	}
	if c.Estimate.Density < 0 {
		errs = append(errs, errors.New("estimate.density must not be negative"))
	}

	if c.Schedule.Enabled && c.Schedule.IntervalSec <= 0 {
		errs = append(errs, errors.New("schedule.interval_sec must be positive when enabled"))
	}

	if c.Evaluator.Enabled {
		if c.Evaluator.TimeoutSec <= 0 {
			errs = append(errs, errors.New("evaluator.timeout_sec must be positive"))
		}
		if c.Evaluator.MaxTokens <= 0 {
			errs = append(errs, errors.New("evaluator.max_tokens must be positive"))
		}
		if c.Evaluator.MaxCodeBytes <= 0 {
			errs = append(errs, errors.New("evaluator.max_code_bytes must be positive"))
		}
	}

	if c.IPC.SocketPath == "" {
		errs = append(errs, errors.New("ipc.socket_path must be set"))
	}
	if c.Spool.Enabled && c.Spool.Dir == "" {
		errs = append(errs, errors.New("spool.dir must be set when spool is enabled"))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path must be set when journal is enabled"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr must be set when metrics are enabled"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	switch c.Logging.Output {
	case "stderr", "stdout":
	case "file":
		if c.Logging.FilePath == "" {
			errs = append(errs, errors.New("logging.file_path must be set for file output"))
		}
	default:
		errs = append(errs, fmt.Errorf("logging.output %q is not one of stderr, stdout, file", c.Logging.Output))
	}

	return errors.Join(errs...)
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REVIEWD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REVIEWD_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("REVIEWD_EVALUATOR_MODEL"); v != "" {
		c.Evaluator.Model = v
	}
}

// PerChar returns the per-character cost as a duration.
func (c *EstimateConfig) PerChar() time.Duration {
	return time.Duration(c.PerCharMs) * time.Millisecond
}

// PerLine returns the per-line cost as a duration.
func (c *EstimateConfig) PerLine() time.Duration {
	return time.Duration(c.PerLineMs) * time.Millisecond
}

// Min returns the window floor as a duration.
func (c *EstimateConfig) Min() time.Duration {
	return time.Duration(c.MinMs) * time.Millisecond
}

// Max returns the window ceiling as a duration.
func (c *EstimateConfig) Max() time.Duration {
	return time.Duration(c.MaxMs) * time.Millisecond
}
