// Package dbutil opens the SQLite databases framecast keeps under its data
// directory and classifies driver errors for the retry policy.
//
// Each store embeds its own schema.sql and version; Open applies the shared
// pragmas, creates the schema on first use, and refuses to run against a
// database written by a different schema version. The databases hold
// transient pipeline state, so a version bump means clearing the file rather
// than migrating it.
package dbutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"framecast/internal/services"
)

// ErrSchemaMismatch means the file was created for a different schema
// version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const sqliteBusyCode = 5

// dsn applies the connection pragmas through the modernc driver so every
// pooled connection gets them.
func dsn(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open connects to the SQLite file at path, creating it and its directory
// when missing, and ensures schemaSQL at version. The version lives in
// PRAGMA user_version; zero means the schema has not been applied.
func Open(ctx context.Context, path, schemaSQL string, version int) (*sql.DB, error) {
	if version <= 0 {
		return nil, fmt.Errorf("schema version must be positive, got %d", version)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureSchema(ctx, db, schemaSQL, version); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schemaSQL string, version int) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch current {
	case version:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %d on disk, %d expected (delete the database to reset)",
			ErrSchemaMismatch, current, version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// IsBusy reports whether err is SQLite lock contention.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Classify tags busy errors as transient so the shared retry policy retries
// them; every other driver error is returned unchanged.
func Classify(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusy(err) {
		return services.Wrap(services.ErrTransient, component, operation, "database busy", err)
	}
	return err
}
