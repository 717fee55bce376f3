package evaluate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 20*time.Second {
		t.Errorf("expected 20s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxCodeBytes != 2<<20 {
		t.Errorf("expected 2MiB payload cap, got %d", cfg.MaxCodeBytes)
	}
	if cfg.Model == "" {
		t.Error("expected a default model")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := New(Config{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	e, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if e.config.Model != DefaultConfig().Model {
		t.Errorf("expected default model, got %s", e.config.Model)
	}
	if e.config.Timeout != 20*time.Second {
		t.Errorf("expected default timeout, got %v", e.config.Timeout)
	}
	if e.limiter != nil {
		t.Error("expected no limiter when SubmissionsPerMinute is zero")
	}
}

func TestRateLimiter(t *testing.T) {
	e, err := New(Config{APIKey: "test-key", SubmissionsPerMinute: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// First token available immediately, second within a minute is not.
	if !e.limiter.Allow() {
		t.Fatal("expected first submission allowed")
	}
	if e.limiter.Allow() {
		t.Error("expected second immediate submission rejected")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("func add(a, b int) int { return a + b }", "adds two numbers")

	if !strings.Contains(prompt, "func add(a, b int) int") {
		t.Error("prompt missing code")
	}
	if !strings.Contains(prompt, "adds two numbers") {
		t.Error("prompt missing summary")
	}
	if !strings.Contains(prompt, "MATCH") || !strings.Contains(prompt, "MISMATCH") {
		t.Error("prompt missing verdict instructions")
	}
}

func TestTruncateBytes(t *testing.T) {
	if got := truncateBytes("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncateBytes("hello world", 5); got != "hello" {
		t.Errorf("expected 5-byte cut, got %q", got)
	}

	// Never split a multi-byte rune.
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncateBytes(s, 5)
	if len(got) != 4 {
		t.Errorf("expected cut at rune boundary (4 bytes), got %d", len(got))
	}
	for _, r := range got {
		if r != 'é' {
			t.Errorf("corrupted rune in truncation: %q", got)
		}
	}
}
