package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderReloadNotifiesCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[schedule]\ninterval_sec = 30\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var got *Config
	l.OnChange(func(cfg *Config) { got = cfg })

	if err := os.WriteFile(path, []byte("[schedule]\ninterval_sec = 60\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l.reload()

	if got == nil {
		t.Fatal("callback not invoked")
	}
	if got.Schedule.IntervalSec != 60 {
		t.Errorf("expected interval 60, got %d", got.Schedule.IntervalSec)
	}
}

func TestLoaderReloadFailureLoggedAndKeepsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[schedule]\ninterval_sec = 30\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var buf bytes.Buffer
	l.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	called := false
	l.OnChange(func(*Config) { called = true })

	if err := os.WriteFile(path, []byte("not valid toml ["), 0o600); err != nil {
		t.Fatal(err)
	}
	l.reload()

	if called {
		t.Error("callback must not fire on a failed reload")
	}
	if !strings.Contains(buf.String(), "config reload failed") {
		t.Errorf("expected reload failure logged, got: %s", buf.String())
	}
	if l.Config().Schedule.IntervalSec != 30 {
		t.Errorf("previous config not retained, interval %d", l.Config().Schedule.IntervalSec)
	}
}
