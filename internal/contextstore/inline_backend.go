package contextstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"framecast/internal/dbutil"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

// InlineBackend keeps documents as blobs in the index database.
type InlineBackend struct {
	db *sql.DB
}

// NewInlineBackend uses db, which must carry the contextstore schema.
func NewInlineBackend(db *sql.DB) *InlineBackend {
	return &InlineBackend{db: db}
}

func (b *InlineBackend) Tier() stagedoc.Tier { return stagedoc.TierInline }

func (b *InlineBackend) Put(ctx context.Context, obj Object) (string, error) {
	location := obj.ProjectID + "/" + string(obj.Stage) + "/" + obj.Version + "-" + string(obj.Codec)
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO inline_documents (location, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		location, obj.Data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", classifyDB("inline put", err)
	}
	return location, nil
}

func (b *InlineBackend) Get(ctx context.Context, location string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT data FROM inline_documents WHERE location = ?", location).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "contextstore", "inline get", "no inline document at "+location, nil)
	}
	if err != nil {
		return nil, classifyDB("inline get", err)
	}
	return data, nil
}

func (b *InlineBackend) Delete(ctx context.Context, location string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM inline_documents WHERE location = ?", location); err != nil {
		return classifyDB("inline delete", err)
	}
	return nil
}

func classifyDB(operation string, err error) error {
	if dbutil.IsBusy(err) {
		return dbutil.Classify("contextstore", operation, err)
	}
	return services.Wrap(services.ErrFatal, "contextstore", operation, "", err)
}
