// Insertion records: the captured payloads of detected bulk insertions.
//
// Each bulk insertion creates a keyed record rather than overwriting a
// single global slot, so a summary written for an earlier insertion stays
// correlated with the code it actually describes even when a newer
// insertion arrives first. Old records are evicted LRU once the history
// limit is reached; evicted records surface as "unknown", never as silent
// evaluation against the wrong payload.

package review

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// InsertionRecord is one captured bulk insertion.
type InsertionRecord struct {
	// ID is an opaque key for this insertion.
	ID string

	// DocumentID is the document the insertion landed in.
	DocumentID string

	// Timestamp is when the insertion was detected.
	Timestamp time.Time

	// Text is the concatenated inserted fragments in arrival order.
	Text string

	// Chars and Lines are the insertion size.
	Chars int
	Lines int

	// Summary is the user's free-text description, if recorded.
	Summary string

	// SummaryAt is when the summary was recorded.
	SummaryAt time.Time
}

// PayloadMeta is the externally visible metadata of an insertion record.
type PayloadMeta struct {
	RecordID   string    `json:"record_id"`
	DocumentID string    `json:"document_id"`
	Timestamp  time.Time `json:"timestamp"`
	Chars      int       `json:"chars"`
	Lines      int       `json:"lines"`
}

// recordStore keeps the bounded insertion history plus a latest pointer.
// Not internally locked: the monitor's lock covers all access.
type recordStore struct {
	history  *lru.Cache[string, *InsertionRecord]
	latestID string
}

func newRecordStore(size int) (*recordStore, error) {
	history, err := lru.New[string, *InsertionRecord](size)
	if err != nil {
		return nil, err
	}
	return &recordStore{history: history}, nil
}

// add captures a new bulk insertion and makes it the latest record.
func (s *recordStore) add(docID, text string, chars, lines int, now time.Time) *InsertionRecord {
	rec := &InsertionRecord{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Timestamp:  now,
		Text:       text,
		Chars:      chars,
		Lines:      lines,
	}
	s.history.Add(rec.ID, rec)
	s.latestID = rec.ID
	return rec
}

// latest returns the most recent record, or nil when none has been captured
// or it was evicted.
func (s *recordStore) latest() *InsertionRecord {
	if s.latestID == "" {
		return nil
	}
	rec, ok := s.history.Get(s.latestID)
	if !ok {
		return nil
	}
	return rec
}

// get returns a copy of a record by id.
func (s *recordStore) get(id string) (InsertionRecord, bool) {
	rec, ok := s.history.Get(id)
	if !ok {
		return InsertionRecord{}, false
	}
	return *rec, true
}

// recordSummary attaches a summary to the latest record. Returns the record
// it attached to, or nil when no payload exists.
func (s *recordStore) recordSummary(text string, now time.Time) *InsertionRecord {
	rec := s.latest()
	if rec == nil {
		return nil
	}
	rec.Summary = text
	rec.SummaryAt = now
	return rec
}

// recordSummaryFor attaches a summary to a specific record by id.
func (s *recordStore) recordSummaryFor(id, text string, now time.Time) *InsertionRecord {
	rec, ok := s.history.Get(id)
	if !ok {
		return nil
	}
	rec.Summary = text
	rec.SummaryAt = now
	return rec
}
