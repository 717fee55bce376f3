// Package classify decides whether an aggregated edit event represents a
// bulk insertion (paste or machine-generated content), incremental human
// typing, or neither.
//
// Manual typing arrives in small fragmented bursts; pasted or generated
// content arrives as one or a few large fragments. The thresholds here are
// fixed configuration values, never adaptive.
package classify

import (
	"strings"
)

// Class categorizes an aggregated edit event.
type Class int

const (
	// Neutral events carry no signal and are ignored.
	Neutral Class = iota
	// BulkInsert indicates a large paste or generated insertion.
	BulkInsert
	// IncrementalTyping indicates ordinary human typing.
	IncrementalTyping
)

func (c Class) String() string {
	switch c {
	case BulkInsert:
		return "bulk_insert"
	case IncrementalTyping:
		return "incremental_typing"
	case Neutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// Aggregate summarizes one edit event for a single document. Deletions are
// not counted: only inserted content matters for classification.
type Aggregate struct {
	// Chars is the net number of inserted characters (runes).
	Chars int

	// Lines is the number of inserted newlines.
	Lines int

	// Fragments is the number of inserted-text fragments in the event.
	Fragments int

	// HasSubstance is true when at least one fragment contains a
	// non-whitespace character.
	HasSubstance bool
}

// Thresholds defines the classification boundaries.
type Thresholds struct {
	// BulkChars: events inserting at least this many characters are bulk.
	BulkChars int

	// BulkLines: events inserting at least this many newlines are bulk.
	BulkLines int

	// TypingChars: typing events insert at most this many characters.
	TypingChars int

	// TypingFragments: typing events carry at most this many fragments.
	TypingFragments int
}

// DefaultThresholds returns the standard classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BulkChars:       300,
		BulkLines:       8,
		TypingChars:     32,
		TypingFragments: 3,
	}
}

// Classifier applies fixed thresholds to aggregated edit events.
type Classifier struct {
	thresholds Thresholds
}

// New creates a classifier with the given thresholds.
func New(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify categorizes a single aggregated edit event.
//
// Bulk insertion wins over typing when both could match: a 300-character
// single fragment is bulk regardless of fragment count.
func (c *Classifier) Classify(agg Aggregate) Class {
	t := c.thresholds

	if agg.Chars >= t.BulkChars || agg.Lines >= t.BulkLines {
		return BulkInsert
	}

	if agg.Chars <= t.TypingChars && agg.Fragments <= t.TypingFragments && agg.HasSubstance {
		return IncrementalTyping
	}

	return Neutral
}

// AggregateFragments builds an Aggregate from the inserted-text fragments of
// one edit event, in arrival order.
func AggregateFragments(fragments []string) Aggregate {
	agg := Aggregate{Fragments: len(fragments)}
	for _, frag := range fragments {
		agg.Chars += len([]rune(frag))
		agg.Lines += strings.Count(frag, "\n")
		if !agg.HasSubstance && strings.TrimSpace(frag) != "" {
			agg.HasSubstance = true
		}
	}
	return agg
}
