// Package journal records every state-changing command the operator runs,
// whether it was submitted, failed or aborted at the consent prompt.
package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
	StatusSubmitted Status = "submitted"
)

func ParseStatus(input string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(input))); s {
	case "", StatusAborted, StatusFailed, StatusSubmitted:
		return s, nil
	default:
		return "", fmt.Errorf("invalid journal status %q (want aborted|failed|submitted)", input)
	}
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS entries (
			entry_id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			profile TEXT NOT NULL,
			cluster TEXT NOT NULL,
			status TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_entries_status_created ON entries(status, created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an entry, filling in its id and timestamp when unset.
func (s *Store) Record(entry model.JournalEntry) (model.JournalEntry, error) {
	if strings.TrimSpace(entry.Command) == "" {
		return entry, fmt.Errorf("record journal entry: missing command")
	}
	if _, err := ParseStatus(entry.Status); err != nil || entry.Status == "" {
		return entry, fmt.Errorf("record journal entry: invalid status %q", entry.Status)
	}
	if entry.EntryID == "" {
		entry.EntryID = NewEntryID()
	}
	created := s.now().UTC()
	if entry.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
			created = t.UTC()
		}
	}
	entry.CreatedAt = created.Format(time.RFC3339)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return entry, fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return entry, fmt.Errorf("lock journal: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.Exec(`
		INSERT INTO entries (entry_id, command, profile, cluster, status, signature, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.EntryID, entry.Command, entry.Profile, entry.Cluster, entry.Status, entry.Signature, entry.Error, created.UnixNano())
	if err != nil {
		return entry, fmt.Errorf("record journal entry: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first, optionally filtered by status.
func (s *Store) List(status Status, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	const cols = "entry_id, command, profile, cluster, status, signature, error, created_at"
	if status == "" {
		rows, err = s.db.Query("SELECT "+cols+" FROM entries ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT "+cols+" FROM entries WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	entries := make([]model.JournalEntry, 0)
	for rows.Next() {
		var (
			e       model.JournalEntry
			created int64
		)
		if err := rows.Scan(&e.EntryID, &e.Command, &e.Profile, &e.Cluster, &e.Status, &e.Signature, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

func NewEntryID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "jrn-unknown"
	}
	return "jrn_" + hex.EncodeToString(b)
}
