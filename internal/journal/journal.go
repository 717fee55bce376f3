// Package journal provides the append-only audit journal for reviewd.
//
// The journal records what the monitor observed — bulk insertions, early-edit
// warnings, milestone ticks, evaluator verdicts — so past review windows can
// be inspected after the fact. It is write-only history: monitor state is
// never rebuilt from it on startup.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the reviewd audit journal.
const schema = `
CREATE TABLE IF NOT EXISTS insertions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id     TEXT NOT NULL,
    document_id   TEXT NOT NULL,
    timestamp_ns  INTEGER NOT NULL,
    chars         INTEGER NOT NULL,
    lines         INTEGER NOT NULL,
    expected_ms   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_insertions_doc ON insertions(document_id, timestamp_ns);

CREATE TABLE IF NOT EXISTS warnings (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id   TEXT NOT NULL,
    timestamp_ns  INTEGER NOT NULL,
    elapsed_ms    INTEGER NOT NULL,
    expected_ms   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warnings_doc ON warnings(document_id, timestamp_ns);

CREATE TABLE IF NOT EXISTS verdicts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id     TEXT NOT NULL,
    timestamp_ns  INTEGER NOT NULL,
    ok            INTEGER NOT NULL,
    verdict       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS milestones (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ordinal       INTEGER NOT NULL,
    timestamp_ns  INTEGER NOT NULL
);
`

// Journal is a sqlite-backed audit log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Insertion records a detected bulk insertion.
func (j *Journal) Insertion(recordID, documentID string, at time.Time, chars, lines int, expected time.Duration) error {
	_, err := j.db.Exec(
		`INSERT INTO insertions (record_id, document_id, timestamp_ns, chars, lines, expected_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		recordID, documentID, at.UnixNano(), chars, lines, expected.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record insertion: %w", err)
	}
	return nil
}

// Warning records an early-edit warning.
func (j *Journal) Warning(documentID string, at time.Time, elapsed, expected time.Duration) error {
	_, err := j.db.Exec(
		`INSERT INTO warnings (document_id, timestamp_ns, elapsed_ms, expected_ms)
		 VALUES (?, ?, ?, ?)`,
		documentID, at.UnixNano(), elapsed.Milliseconds(), expected.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record warning: %w", err)
	}
	return nil
}

// Verdict records an evaluator outcome.
func (j *Journal) Verdict(recordID string, at time.Time, ok bool, verdict string) error {
	_, err := j.db.Exec(
		`INSERT INTO verdicts (record_id, timestamp_ns, ok, verdict) VALUES (?, ?, ?, ?)`,
		recordID, at.UnixNano(), boolToInt(ok), verdict,
	)
	if err != nil {
		return fmt.Errorf("failed to record verdict: %w", err)
	}
	return nil
}

// Milestone records a scheduler tick.
func (j *Journal) Milestone(ordinal uint64, at time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO milestones (ordinal, timestamp_ns) VALUES (?, ?)`,
		ordinal, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record milestone: %w", err)
	}
	return nil
}

// InsertionRow is one journaled bulk insertion.
type InsertionRow struct {
	RecordID   string
	DocumentID string
	Timestamp  time.Time
	Chars      int
	Lines      int
	ExpectedMS int64
}

// RecentInsertions returns the most recent journaled insertions.
func (j *Journal) RecentInsertions(limit int) ([]InsertionRow, error) {
	rows, err := j.db.Query(
		`SELECT record_id, document_id, timestamp_ns, chars, lines, expected_ms
		 FROM insertions ORDER BY timestamp_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query insertions: %w", err)
	}
	defer rows.Close()

	var out []InsertionRow
	for rows.Next() {
		var r InsertionRow
		var ns int64
		if err := rows.Scan(&r.RecordID, &r.DocumentID, &ns, &r.Chars, &r.Lines, &r.ExpectedMS); err != nil {
			return nil, fmt.Errorf("failed to scan insertion: %w", err)
		}
		r.Timestamp = time.Unix(0, ns)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes journal contents.
type Stats struct {
	Insertions int `json:"insertions"`
	Warnings   int `json:"warnings"`
	Verdicts   int `json:"verdicts"`
	Milestones int `json:"milestones"`
}

// Counts returns row counts for all journal tables.
func (j *Journal) Counts() (Stats, error) {
	var s Stats
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"insertions", &s.Insertions},
		{"warnings", &s.Warnings},
		{"verdicts", &s.Verdicts},
		{"milestones", &s.Milestones},
	} {
		if err := j.db.QueryRow("SELECT COUNT(*) FROM " + q.table).Scan(q.dst); err != nil {
			return Stats{}, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
