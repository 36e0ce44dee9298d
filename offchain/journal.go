package offchain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "github.com/glebarez/sqlite"

	"ecdpchain/native/cdp"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS submissions(
    id TEXT PRIMARY KEY,
    block INTEGER NOT NULL,
    kind TEXT NOT NULL,
    currency TEXT NOT NULL,
    owner TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    submitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_block ON submissions(block);
`

const defaultFilePragmas = "mode=rwc&_busy_timeout=5000&_journal_mode=WAL"

// ErrJournalPathRequired is returned when the journal DSN is empty.
var ErrJournalPathRequired = errors.New("offchain: journal path must be configured")

// JournalDSN converts a filesystem path into an on-disk SQLite DSN.
func JournalDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrJournalPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// Submission is one journaled unsigned call.
type Submission struct {
	ID          string
	Block       uint64
	Kind        string
	Currency    string
	Owner       string
	Error       string
	SubmittedAt time.Time
}

// Journal records every call the scanner hands to the pool.
type Journal struct {
	db *sql.DB
}

func OpenJournal(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrJournalPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores a submission and returns its generated id.
func (j *Journal) Record(ctx context.Context, block uint64, call cdp.UnsignedCall, submitErr error, at time.Time) (string, error) {
	if j == nil || j.db == nil {
		return "", fmt.Errorf("journal not configured")
	}
	id := uuid.NewString()
	var msg string
	if submitErr != nil {
		msg = submitErr.Error()
	}
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO submissions(id, block, kind, currency, owner, error, submitted_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
    `, id, int64(block), call.Kind.String(), string(call.Currency), call.Owner.Hex(), msg, at.UTC().UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// Recent returns the latest submissions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Submission, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT id, block, kind, currency, owner, error, submitted_at
        FROM submissions
        ORDER BY submitted_at DESC, block DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var (
			sub   Submission
			block int64
			at    int64
		)
		if err := rows.Scan(&sub.ID, &block, &sub.Kind, &sub.Currency, &sub.Owner, &sub.Error, &at); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Block = uint64(block)
		sub.SubmittedAt = time.Unix(0, at).UTC()
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CountByBlock returns how many calls were submitted at block.
func (j *Journal) CountByBlock(ctx context.Context, block uint64) (int, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("journal not configured")
	}
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE block = ?`, int64(block)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}
