// Package review implements the per-document review window state machine.
//
// The monitor consumes aggregated edit events, opens a timed review window
// whenever a bulk insertion is detected, and watches for the user editing
// suspiciously early — before the expected reading time has elapsed. Each
// document has at most one open window; documents never affect each other.
//
// All signals emitted by the monitor (prompts, warnings) are advisory. Sinks
// are invoked outside the monitor lock and must not be relied on for
// ordering guarantees beyond per-document arrival order.
package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"reviewd/internal/classify"
	"reviewd/internal/editwire"
)

var (
	// ErrNoPayload is returned when a summary is submitted but no bulk
	// insertion has been captured yet.
	ErrNoPayload = errors.New("review: no code to evaluate")

	// ErrUnknownRecord is returned when a summary targets an insertion
	// record that has been evicted from the history.
	ErrUnknownRecord = errors.New("review: unknown insertion record")

	// ErrNoEvaluator is returned when summary submission is attempted
	// without a configured evaluator.
	ErrNoEvaluator = errors.New("review: no evaluator configured")
)

// PendingReview is an open review window for one document. Immutable once
// created; replaced wholesale by a newer qualifying insertion.
type PendingReview struct {
	// Opened is when the window was opened.
	Opened time.Time

	// Deadline is the absolute time the window closes.
	Deadline time.Time

	// Expected is the estimated review duration.
	Expected time.Duration

	// Chars and Lines are the size of the triggering insertion.
	Chars int
	Lines int
}

// Prompt is emitted when a review window opens. Preview is capped for
// display; the full text stays in the insertion record.
type Prompt struct {
	DocumentID string
	RecordID   string
	Preview    string
	Truncated  bool
	Chars      int
	Lines      int
	Expected   time.Duration
}

// Warning is emitted when the user starts typing inside an open review
// window, before the expected reading time has elapsed.
type Warning struct {
	DocumentID string
	Elapsed    time.Duration
	Expected   time.Duration
}

// Evaluator judges whether a free-text summary matches inserted code. The
// call must be a single bounded request; the monitor never retries.
type Evaluator interface {
	Evaluate(ctx context.Context, code, summary string) (string, error)
}

// Evaluation is emitted after each evaluator call, carrying the id of the
// insertion record that was judged so downstream consumers can attribute
// the verdict.
type Evaluation struct {
	RecordID   string
	DocumentID string
	Verdict    string
	Err        error
}

// Config configures a Monitor.
type Config struct {
	// Thresholds for bulk/typing classification.
	Thresholds classify.Thresholds

	// Estimate parameters for review window sizing.
	Estimate classify.EstimateParams

	// PreviewCap limits the prompt preview length, in characters.
	PreviewCap int

	// HistorySize is how many insertion records to retain.
	HistorySize int
}

// DefaultConfig returns sensible monitor defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds:  classify.DefaultThresholds(),
		Estimate:    classify.DefaultEstimateParams(),
		PreviewCap:  4000,
		HistorySize: 32,
	}
}

// Monitor drives review windows for all open documents.
type Monitor struct {
	mu sync.RWMutex

	config     Config
	classifier *classify.Classifier

	// Open review windows by document id.
	pending map[string]*PendingReview

	// Captured bulk insertions.
	records *recordStore

	// External evaluator for summary verification.
	evaluator Evaluator

	// Signal sinks.
	promptSinks  []func(Prompt)
	warningSinks []func(Warning)
	eventSinks   []func(string, classify.Class)
	evalSinks    []func(Evaluation)

	// Clock, replaceable in tests.
	now func() time.Time
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.PreviewCap <= 0 {
		cfg.PreviewCap = 4000
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 32
	}

	records, err := newRecordStore(cfg.HistorySize)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		config:     cfg,
		classifier: classify.New(cfg.Thresholds),
		pending:    make(map[string]*PendingReview),
		records:    records,
		now:        time.Now,
	}, nil
}

// SetEvaluator installs the external evaluator used by SubmitSummary.
func (m *Monitor) SetEvaluator(e Evaluator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluator = e
}

// OnPrompt registers a sink for review prompt signals.
func (m *Monitor) OnPrompt(fn func(Prompt)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptSinks = append(m.promptSinks, fn)
}

// OnWarning registers a sink for early-edit warning signals.
func (m *Monitor) OnWarning(fn func(Warning)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningSinks = append(m.warningSinks, fn)
}

// OnEvent registers a sink observing every handled event's classification.
func (m *Monitor) OnEvent(fn func(docID string, class classify.Class)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventSinks = append(m.eventSinks, fn)
}

// OnEvaluation registers a sink observing every evaluator verdict.
func (m *Monitor) OnEvaluation(fn func(Evaluation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalSinks = append(m.evalSinks, fn)
}

// HandleEvent processes one edit event to completion: classify, transition
// the document's window state, and emit any resulting signals. Events for
// the same document must be delivered in arrival order.
//
// Returns the classification applied to the event.
func (m *Monitor) HandleEvent(ev editwire.Event) classify.Class {
	agg := ev.Aggregate()

	m.mu.Lock()

	now := ev.Timestamp
	if now.IsZero() {
		now = m.now()
	}

	class := m.classifier.Classify(agg)
	docID := ev.DocumentID

	var prompt *Prompt
	var warning *Warning

	switch class {
	case classify.BulkInsert:
		// Any prior window for this document is discarded wholesale.
		prompt = m.openWindowLocked(docID, ev.InsertedText(), agg, now)

	case classify.IncrementalTyping:
		if entry, ok := m.pending[docID]; ok {
			if now.Before(entry.Deadline) {
				// Editing before the review time elapsed.
				warning = &Warning{
					DocumentID: docID,
					Elapsed:    now.Sub(entry.Opened),
					Expected:   entry.Expected,
				}
			}
			delete(m.pending, docID)
		}

	case classify.Neutral:
		// Neutral events carry no signal, but a window whose deadline
		// has passed is discarded by any later edit.
		if entry, ok := m.pending[docID]; ok && !now.Before(entry.Deadline) {
			delete(m.pending, docID)
		}
	}

	promptSinks := m.promptSinks
	warningSinks := m.warningSinks
	eventSinks := m.eventSinks
	m.mu.Unlock()

	// Signals are advisory: deliver outside the lock so a slow sink can
	// never block event handling.
	if prompt != nil {
		for _, fn := range promptSinks {
			fn(*prompt)
		}
	}
	if warning != nil {
		for _, fn := range warningSinks {
			fn(*warning)
		}
	}
	for _, fn := range eventSinks {
		fn(docID, class)
	}

	return class
}

// openWindowLocked opens (or replaces) the review window for a document and
// captures the inserted payload. Caller holds m.mu.
func (m *Monitor) openWindowLocked(docID, text string, agg classify.Aggregate, now time.Time) *Prompt {
	expected := classify.Estimate(agg.Chars, agg.Lines, m.config.Estimate)

	m.pending[docID] = &PendingReview{
		Opened:   now,
		Deadline: now.Add(expected),
		Expected: expected,
		Chars:    agg.Chars,
		Lines:    agg.Lines,
	}

	rec := m.records.add(docID, text, agg.Chars, agg.Lines, now)

	preview := text
	truncated := false
	if runes := []rune(preview); len(runes) > m.config.PreviewCap {
		preview = string(runes[:m.config.PreviewCap])
		truncated = true
	}

	return &Prompt{
		DocumentID: docID,
		RecordID:   rec.ID,
		Preview:    preview,
		Truncated:  truncated,
		Chars:      agg.Chars,
		Lines:      agg.Lines,
		Expected:   expected,
	}
}

// InReviewWindow reports whether a document currently has an open review
// window. Read-only; safe to call at high frequency.
func (m *Monitor) InReviewWindow(docID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.pending[docID]
	if !ok {
		return false
	}
	return m.now().Before(entry.Deadline)
}

// PendingFor returns a copy of the document's open window, if any. Expired
// entries are reported as absent but never mutated here.
func (m *Monitor) PendingFor(docID string) (PendingReview, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.pending[docID]
	if !ok || !m.now().Before(entry.Deadline) {
		return PendingReview{}, false
	}
	return *entry, true
}

// OpenWindows returns the number of unexpired review windows.
func (m *Monitor) OpenWindows() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, entry := range m.pending {
		if now.Before(entry.Deadline) {
			n++
		}
	}
	return n
}

// Pending returns a snapshot of all unexpired review windows keyed by
// document ID.
func (m *Monitor) Pending() map[string]PendingReview {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	out := make(map[string]PendingReview)
	for docID, entry := range m.pending {
		if now.Before(entry.Deadline) {
			out[docID] = *entry
		}
	}
	return out
}

// SubmitSummary records the user's free-text description of the most recent
// bulk insertion and forwards it, with that insertion's code, to the
// evaluator. One bounded request, no retry; callers may resubmit on failure.
func (m *Monitor) SubmitSummary(ctx context.Context, summary string) (string, error) {
	m.mu.Lock()
	rec := m.records.recordSummary(summary, m.now())
	evaluator := m.evaluator
	m.mu.Unlock()

	if rec == nil {
		return "", ErrNoPayload
	}
	if evaluator == nil {
		return "", ErrNoEvaluator
	}

	return m.evaluateRecord(ctx, evaluator, rec, summary)
}

// SubmitSummaryFor behaves like SubmitSummary but targets a specific
// insertion record, so a summary written for an earlier insertion is never
// evaluated against a newer one.
func (m *Monitor) SubmitSummaryFor(ctx context.Context, recordID, summary string) (string, error) {
	m.mu.Lock()
	rec := m.records.recordSummaryFor(recordID, summary, m.now())
	evaluator := m.evaluator
	m.mu.Unlock()

	if rec == nil {
		return "", ErrUnknownRecord
	}
	if evaluator == nil {
		return "", ErrNoEvaluator
	}

	return m.evaluateRecord(ctx, evaluator, rec, summary)
}

// evaluateRecord runs one evaluator call and reports its outcome, tagged
// with the judged record, to the evaluation sinks. Sinks run outside the
// monitor lock.
func (m *Monitor) evaluateRecord(ctx context.Context, e Evaluator, rec *InsertionRecord, summary string) (string, error) {
	verdict, err := e.Evaluate(ctx, rec.Text, summary)

	m.mu.RLock()
	sinks := m.evalSinks
	m.mu.RUnlock()

	result := Evaluation{
		RecordID:   rec.ID,
		DocumentID: rec.DocumentID,
		Verdict:    verdict,
		Err:        err,
	}
	for _, fn := range sinks {
		fn(result)
	}

	return verdict, err
}

// LastPayloadText returns the most recent bulk insertion's full text.
func (m *Monitor) LastPayloadText() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := m.records.latest()
	if rec == nil {
		return "", false
	}
	return rec.Text, true
}

// LastPayloadMeta returns metadata for the most recent bulk insertion.
func (m *Monitor) LastPayloadMeta() (PayloadMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := m.records.latest()
	if rec == nil {
		return PayloadMeta{}, false
	}
	return PayloadMeta{
		RecordID:   rec.ID,
		DocumentID: rec.DocumentID,
		Timestamp:  rec.Timestamp,
		Chars:      rec.Chars,
		Lines:      rec.Lines,
	}, true
}

// RecordSummary attaches a free-text description to the most recent bulk
// insertion without evaluating it. Last wins; independently timestamped.
func (m *Monitor) RecordSummary(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records.recordSummary(text, m.now()) != nil
}

// Record returns a copy of a specific insertion record from the history.
func (m *Monitor) Record(recordID string) (InsertionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.get(recordID)
}
