// Package editwire defines the wire format for edit events submitted by
// editor integrations, and validates inbound JSON before it reaches the
// monitor.
//
// An edit event carries, for one document, the ordered set of inserted-text
// fragments (and the size of any deleted ranges) produced by a single edit
// batch. The document identifier is an opaque, editor-independent stable id;
// it does not need to survive process restarts.
package editwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewd/internal/classify"
)

// ErrInvalidEvent is returned when an inbound event fails schema validation.
var ErrInvalidEvent = errors.New("editwire: invalid edit event")

// Fragment is one contiguous change within an edit batch.
type Fragment struct {
	// Inserted is the text added by this fragment (may be empty for a
	// pure deletion).
	Inserted string `json:"inserted"`

	// Deleted is the size of the removed range, in characters. Deletions
	// never count toward classification.
	Deleted int `json:"deleted,omitempty"`
}

// Event is one edit batch for a single document.
type Event struct {
	// DocumentID is the stable identifier of the edited document.
	DocumentID string `json:"document_id"`

	// Fragments are the changes in arrival order.
	Fragments []Fragment `json:"fragments"`

	// Timestamp is when the editing surface emitted the event. Zero means
	// "now" as observed by the monitor.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// InsertedText returns the concatenated inserted fragments in arrival order.
func (e Event) InsertedText() string {
	var b strings.Builder
	for _, f := range e.Fragments {
		b.WriteString(f.Inserted)
	}
	return b.String()
}

// Aggregate summarizes the event for classification.
func (e Event) Aggregate() classify.Aggregate {
	fragments := make([]string, 0, len(e.Fragments))
	for _, f := range e.Fragments {
		fragments = append(fragments, f.Inserted)
	}
	return classify.AggregateFragments(fragments)
}

// Decode validates raw JSON against the event schema and unmarshals it.
func Decode(data []byte) (Event, error) {
	if err := Validate(data); err != nil {
		return Event{}, err
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}
