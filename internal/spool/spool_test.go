package spool

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reviewd/internal/editwire"
)

type collector struct {
	mu     sync.Mutex
	events []editwire.Event
}

func (c *collector) handle(ev editwire.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, c.count())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpoolDrainsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	event := `{"document_id": "doc-1", "fragments": [{"inserted": "hello"}]}`
	if err := os.WriteFile(filepath.Join(dir, "001.json"), []byte(event), 0o600); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	c.waitFor(t, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events[0].DocumentID != "doc-1" {
		t.Errorf("unexpected document: %s", c.events[0].DocumentID)
	}

	// File removed after consumption.
	if _, err := os.Stat(filepath.Join(dir, "001.json")); !os.IsNotExist(err) {
		t.Error("expected spool file removed")
	}
}

func TestSpoolPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()

	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	event := `{"document_id": "doc-2", "fragments": [{"inserted": "world"}]}`
	if err := os.WriteFile(filepath.Join(dir, "002.json"), []byte(event), 0o600); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, 1)
}

func TestSpoolDropsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"nope": true}`), 0o600); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.settle = 20 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Invalid file is removed without reaching the handler.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, "bad.json")); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.json")); !os.IsNotExist(err) {
		t.Error("expected invalid file removed")
	}
	if c.count() != 0 {
		t.Errorf("invalid event reached handler: %d", c.count())
	}
}

func TestSpoolRecoversPartialWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "003.json")

	// Half an event, as seen when the editor is caught mid-write.
	if err := os.WriteFile(path, []byte(`{"document_id": "doc-3", "frag`), 0o600); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.settle = 200 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Finish the write before the settle delay elapses.
	time.Sleep(50 * time.Millisecond)
	event := `{"document_id": "doc-3", "fragments": [{"inserted": "late"}]}`
	if err := os.WriteFile(path, []byte(event), 0o600); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events[0].DocumentID != "doc-3" {
		t.Errorf("unexpected document: %s", c.events[0].DocumentID)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected spool file removed after consumption")
	}
}

func TestSpoolIgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an event"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 {
		t.Errorf("non-json file reached handler: %d", c.count())
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-json file should be left alone")
	}
}

func TestSpoolStartIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w, err := New(dir, c.handle, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
