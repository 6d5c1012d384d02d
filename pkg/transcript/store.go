// Package transcript persists transcript_data payloads in SQLite so past
// transcriptions survive editor restarts and can be searched later.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"aubridge/pkg/protocol"

	_ "modernc.org/sqlite"
)

// schemaDDL defines the transcript store schema. Words and utterances keep
// their full timing detail as JSON columns; the scalar columns cover every
// query the editor actually runs.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS transcripts (
    id INTEGER PRIMARY KEY,
    full_text TEXT NOT NULL,
    duration REAL NOT NULL,
    filler_count INTEGER NOT NULL DEFAULT 0,
    words TEXT NOT NULL DEFAULT '[]',
    utterances TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts(created_at);
`

// Store is a SQLite-backed transcript archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the transcript database at path and applies the
// schema. WAL journal mode and a 5-second busy timeout match the rest of the
// application's SQLite usage.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply transcript schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists one transcript and returns its row ID.
func (s *Store) Save(ctx context.Context, t protocol.Transcript) (int64, error) {
	words, err := json.Marshal(t.Words)
	if err != nil {
		return 0, fmt.Errorf("marshal words: %w", err)
	}
	utterances, err := json.Marshal(t.Utterances)
	if err != nil {
		return 0, fmt.Errorf("marshal utterances: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (full_text, duration, filler_count, words, utterances)
		 VALUES (?, ?, ?, ?, ?)`,
		t.FullText, t.Duration, t.FillerCount, string(words), string(utterances),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transcript: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transcript row id: %w", err)
	}
	return id, nil
}

// Latest returns the most recently saved transcript, or sql.ErrNoRows when
// the store is empty.
func (s *Store) Latest(ctx context.Context) (protocol.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT full_text, duration, filler_count, words, utterances
		 FROM transcripts ORDER BY id DESC LIMIT 1`)
	return scanTranscript(row)
}

// Get returns the transcript with the given row ID.
func (s *Store) Get(ctx context.Context, id int64) (protocol.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT full_text, duration, filler_count, words, utterances
		 FROM transcripts WHERE id = ?`, id)
	return scanTranscript(row)
}

// Words returns the word-level detail of one stored transcript.
func (s *Store) Words(ctx context.Context, id int64) ([]protocol.Word, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT words FROM transcripts WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var words []protocol.Word
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, fmt.Errorf("unmarshal words: %w", err)
	}
	return words, nil
}

// Count returns the number of stored transcripts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transcripts: %w", err)
	}
	return n, nil
}

// Search returns the IDs of transcripts whose full text contains the term,
// newest first.
func (s *Store) Search(ctx context.Context, term string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM transcripts WHERE full_text LIKE '%' || ? || '%' ORDER BY id DESC`,
		term)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transcript id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTranscript(row *sql.Row) (protocol.Transcript, error) {
	var t protocol.Transcript
	var words, utterances string
	err := row.Scan(&t.FullText, &t.Duration, &t.FillerCount, &words, &utterances)
	if err != nil {
		return protocol.Transcript{}, err
	}
	if err := json.Unmarshal([]byte(words), &t.Words); err != nil {
		return protocol.Transcript{}, fmt.Errorf("unmarshal words: %w", err)
	}
	if err := json.Unmarshal([]byte(utterances), &t.Utterances); err != nil {
		return protocol.Transcript{}, fmt.Errorf("unmarshal utterances: %w", err)
	}
	return t, nil
}
