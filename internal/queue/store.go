package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"framecast/internal/config"
	"framecast/internal/dbutil"
	"framecast/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const operationColumns = "id, kind, project_id, status, progress, input_json, result_json, error_kind, error_message, created_at, updated_at, completed_at"

// Store manages operation persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the operations database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := dbutil.Open(ctx, path, schemaSQL, schemaVersion)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// OpenFromConfig opens the queue database under the configured data dir.
func OpenFromConfig(ctx context.Context, cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return Open(ctx, cfg.QueueDBPath())
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !dbutil.IsBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, dbutil.Classify("queue", "exec", err)
	}
	return res, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// Create records a pending operation. input is stored as JSON for display.
func (s *Store) Create(ctx context.Context, kind, projectID string, input any) (*Operation, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "operation kind is required", nil)
	}
	var inputJSON sql.NullString
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("marshal operation input: %w", err)
		}
		inputJSON = sql.NullString{String: string(data), Valid: true}
	}
	id := uuid.NewString()
	ts := s.timestamp()
	if _, err := s.exec(ctx,
		`INSERT INTO operations (id, kind, project_id, status, input_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, kind, projectID, StatusPending, inputJSON, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert operation: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches an operation. Unknown ids return a not-found error.
func (s *Store) Get(ctx context.Context, id string) (*Operation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get", fmt.Sprintf("operation %s not found", id), nil)
	}
	if err != nil {
		return nil, dbutil.Classify("queue", "get", fmt.Errorf("get operation: %w", err))
	}
	return op, nil
}

// MarkRunning moves a pending operation to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusRunning, "", sql.NullString{}, "", "", false)
}

// UpdateProgress records a progress note on a running operation.
func (s *Store) UpdateProgress(ctx context.Context, id, progress string) error {
	res, err := s.exec(ctx,
		`UPDATE operations SET progress = ?, updated_at = ? WHERE id = ? AND status = ?`,
		progress, s.timestamp(), id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return expectRow(res, id)
}

// Complete stores result and marks the operation succeeded.
func (s *Store) Complete(ctx context.Context, id string, result any) error {
	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal operation result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}
	return s.transition(ctx, id, StatusSucceeded, "", resultJSON, "", "", true)
}

// Fail marks the operation failed with the classification of cause. result
// may carry partial output such as a failed manifest.
func (s *Store) Fail(ctx context.Context, id string, cause error, result any) error {
	details := services.DetailsOf(cause)
	if details.Kind == "" {
		details.Kind = services.KindFatal
	}
	var resultJSON sql.NullString
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			resultJSON = sql.NullString{String: string(data), Valid: true}
		}
	}
	return s.transition(ctx, id, StatusFailed, "", resultJSON, string(details.Kind), details.Message, true)
}

func (s *Store) transition(ctx context.Context, id string, to Status, progress string, result sql.NullString, errorKind, errorMessage string, terminal bool) error {
	ts := s.timestamp()
	var completed sql.NullString
	if terminal {
		completed = sql.NullString{String: ts, Valid: true}
	}
	res, err := s.exec(ctx,
		`UPDATE operations
         SET status = ?, progress = COALESCE(NULLIF(?, ''), progress), result_json = COALESCE(?, result_json),
             error_kind = NULLIF(?, ''), error_message = NULLIF(?, ''), updated_at = ?, completed_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		to, progress, result, errorKind, errorMessage, ts, completed,
		id, StatusPending, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update operation status: %w", err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "update",
			fmt.Sprintf("operation %s not found or already finished", id), nil)
	}
	return nil
}

// List returns operations newest first. An empty projectID lists every
// project; a non-positive limit means no limit.
func (s *Store) List(ctx context.Context, projectID string, limit int, statuses ...Status) ([]*Operation, error) {
	var (
		where []string
		args  []any
	)
	if projectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, projectID)
	}
	if len(statuses) > 0 {
		where = append(where, "status IN (?"+strings.Repeat(", ?", len(statuses)-1)+")")
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query := `SELECT ` + operationColumns + ` FROM operations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbutil.Classify("queue", "list", fmt.Errorf("list operations: %w", err))
	}
	defer rows.Close()

	var out []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// Summary counts operations by status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM operations GROUP BY status`)
	if err != nil {
		return Summary{}, dbutil.Classify("queue", "summary", fmt.Errorf("operation stats: %w", err))
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusRunning:
			summary.Running = count
		case StatusSucceeded:
			summary.Succeeded = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

// FailInterrupted fails operations a previous daemon left pending or running.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	ts := s.timestamp()
	res, err := s.exec(ctx,
		`UPDATE operations
         SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, services.KindTransient, DaemonStopReason, ts, ts,
		StatusPending, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted operations: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes finished operations completed before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM operations WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusSucceeded, StatusFailed, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune operations: %w", err)
	}
	return res.RowsAffected()
}

func scanOperation(scanner interface{ Scan(dest ...any) error }) (*Operation, error) {
	var (
		op           Operation
		status       string
		progress     sql.NullString
		inputJSON    sql.NullString
		resultJSON   sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&op.ID,
		&op.Kind,
		&op.ProjectID,
		&status,
		&progress,
		&inputJSON,
		&resultJSON,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	op.Status = Status(status)
	op.Progress = progress.String
	if inputJSON.Valid {
		op.Input = json.RawMessage(inputJSON.String)
	}
	if resultJSON.Valid {
		op.Result = json.RawMessage(resultJSON.String)
	}
	op.ErrorKind = errorKind.String
	op.ErrorMessage = errorMessage.String
	op.CreatedAt = parseTime(createdRaw)
	op.UpdatedAt = parseTime(updatedRaw)
	if completedRaw.Valid {
		op.CompletedAt = parseTime(completedRaw.String)
	}
	return &op, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
