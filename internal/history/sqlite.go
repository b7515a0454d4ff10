package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/klauern/docsync/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS file_edits (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	path      TEXT    NOT NULL,
	version   INTEGER NOT NULL,
	operation TEXT    NOT NULL,
	timestamp TEXT,
	author    TEXT,
	message   TEXT,
	src_cr    INTEGER,
	UNIQUE (path, version)
);
CREATE INDEX IF NOT EXISTS idx_file_edits_path ON file_edits(path);
`

// SQLiteStore keeps the log in a SQLite table. The (path, version) unique
// constraint backs the version monotonicity invariant at the storage layer.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps transactions serialized with the package lock
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, version, operation, timestamp, author, message, src_cr FROM file_edits ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			op        string
			timestamp sql.NullString
			author    sql.NullString
			message   sql.NullString
			srcCR     sql.NullInt64
		)
		if err := rows.Scan(&e.Path, &e.Edit.Version, &op, &timestamp, &author, &message, &srcCR); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Edit.Operation, err = model.ParseFileOperation(op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLedger, err)
		}
		if timestamp.Valid && timestamp.String != "" {
			ts, err := time.Parse(time.RFC3339Nano, timestamp.String)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedLedger, timestamp.String)
			}
			e.Edit.Timestamp = ts
		}
		e.Edit.Author = author.String
		e.Edit.Message = message.String
		if srcCR.Valid {
			n := int(srcCR.Int64)
			e.Edit.SrcCR = &n
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Append implements Store. All entries are inserted in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := checkAppend(DeriveManifest(existing), entries); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_edits (path, version, operation, timestamp, author, message, src_cr) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		var (
			timestamp any
			srcCR     any
		)
		if !e.Edit.Timestamp.IsZero() {
			timestamp = e.Edit.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		if e.Edit.SrcCR != nil {
			srcCR = int64(*e.Edit.SrcCR)
		}
		if _, err := stmt.ExecContext(ctx, e.Path, e.Edit.Version, string(e.Edit.Operation),
			timestamp, nullString(e.Edit.Author), nullString(e.Edit.Message), srcCR); err != nil {
			return fmt.Errorf("failed to insert %s@%d: %w", e.Path, e.Edit.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// Text implements Store.
func (s *SQLiteStore) Text(ctx context.Context) (string, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return Serialize(entries), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
