package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/enatools/enafetch/internal/ledger"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// Ledger persists verification state in a SQLite database adjacent to the
// output directory. Every Record call is a synchronous durable write inside
// its own transaction; a mutex serializes writers.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger database at path. An existing file that
// cannot be read as a SQLite database yields ledger.ErrCorrupt so the run
// refuses to proceed with unknown assumptions.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		checksum TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	)`); err != nil {
		db.Close()

		return nil, fmt.Errorf("%w: %v", ledger.ErrCorrupt, err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Load(ctx context.Context) (map[string]ledger.Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, status, checksum, updated_at FROM files`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrCorrupt, err)
	}
	defer rows.Close()

	entries := make(map[string]ledger.Entry)

	for rows.Next() {
		var entry ledger.Entry

		if err := rows.Scan(&entry.ID, &entry.Status, &entry.Checksum, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrCorrupt, err)
		}

		entries[entry.ID] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrCorrupt, err)
	}

	return entries, nil
}

func (l *Ledger) IsVerified(ctx context.Context, id, checksum string) (bool, error) {
	var entry ledger.Entry

	err := l.db.QueryRowContext(ctx, `SELECT id, status, checksum, updated_at FROM files WHERE id = ?`, id).
		Scan(&entry.ID, &entry.Status, &entry.Checksum, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return entry.Status == ledger.StatusVerified && entry.ChecksumMatches(checksum), nil
}

// Record upserts the entry for id. An already-verified entry is never
// overwritten with an incomplete one.
func (l *Ledger) Record(ctx context.Context, id string, status ledger.Status, checksum string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO files (id, status, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
		WHERE files.status != 'verified' OR excluded.status = 'verified'
	`, id, status, checksum, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
