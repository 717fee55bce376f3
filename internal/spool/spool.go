// Package spool watches a drop directory for edit-event files.
//
// Editor integrations that cannot hold a socket connection write one JSON
// edit event per file into the spool directory. The watcher validates each
// file, hands the event to its consumer, and removes the file. Files that
// fail validation are removed as well; the spool never accumulates.
package spool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reviewd/internal/editwire"
)

// Handler consumes one decoded edit event.
type Handler func(editwire.Event)

// settleDelay is how long an undecodable file is given to finish being
// written before it is dropped.
const settleDelay = 500 * time.Millisecond

// Watcher monitors the spool directory.
type Watcher struct {
	dir     string
	handler Handler
	log     *slog.Logger
	settle  time.Duration

	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// consumeMu serializes file consumption between the watch loop and
	// deferred retries.
	consumeMu sync.Mutex

	retryMu sync.Mutex
	retries map[string]bool
}

// New creates a spool watcher for dir.
func New(dir string, handler Handler, log *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:       dir,
		handler:   handler,
		log:       log,
		settle:    settleDelay,
		fsWatcher: fsWatcher,
		retries:   make(map[string]bool),
	}, nil
}

// Start begins watching. Files already present in the spool are drained
// first, oldest name first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.drainExisting()

	w.wg.Add(1)
	go w.watchLoop(ctx)

	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// Process on create and on write: some editors create
			// empty files first and fill them in a second step.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.consumeFile(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("spool watcher error", "error", err)
		}
	}
}

// drainExisting processes files already in the spool, by name order so the
// conventional timestamp-prefixed names replay oldest first.
func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("failed to read spool directory", "error", err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		w.consumeFile(filepath.Join(w.dir, name))
	}
}

// consumeFile decodes and removes one spool file. A file that does not
// decode gets one deferred retry after the settle delay, so an event caught
// mid-write is not lost; a file still invalid on retry is dropped.
func (w *Watcher) consumeFile(path string) {
	w.consume(path, false)
}

func (w *Watcher) consume(path string, isRetry bool) {
	if !strings.HasSuffix(path, ".json") {
		return
	}

	w.consumeMu.Lock()
	defer w.consumeMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		// Already consumed.
		return
	}
	if len(data) == 0 {
		if !isRetry {
			w.scheduleRetry(path)
		}
		return
	}

	ev, err := editwire.Decode(data)
	if err != nil {
		if !isRetry {
			w.scheduleRetry(path)
			return
		}
		w.log.Warn("dropping invalid spool event", "file", filepath.Base(path), "error", err)
		os.Remove(path)
		return
	}

	os.Remove(path)
	w.handler(ev)
}

// scheduleRetry arms one deferred re-read of an undecodable file. At most
// one retry is pending per path; further events for the same file while a
// retry is pending are ignored (the retry will see the final contents).
func (w *Watcher) scheduleRetry(path string) {
	w.retryMu.Lock()
	defer w.retryMu.Unlock()

	if w.retries[path] {
		return
	}
	w.retries[path] = true

	time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()

		if running {
			w.consume(path, true)
		}

		w.retryMu.Lock()
		delete(w.retries, path)
		w.retryMu.Unlock()
	})
}
