package contextstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"framecast/internal/stagedoc"
)

// Head describes the current document for a (project, stage type) pair.
// Store returns it as the write receipt.
type Head struct {
	ProjectID     string             `json:"projectId"`
	StageType     stagedoc.StageType `json:"stageType"`
	StorageTier   stagedoc.Tier      `json:"storageTier"`
	Location      string             `json:"location"`
	SizeBytes     int                `json:"sizeBytes"`
	RawSizeBytes  int                `json:"rawSizeBytes"`
	Compressed    bool               `json:"compressed"`
	Codec         stagedoc.Codec     `json:"codec"`
	SchemaVersion string             `json:"schemaVersion"`
	Digest        string             `json:"digest"`
	CreatedAt     time.Time          `json:"createdAt"`
}

const headColumns = `project_id, stage_type, storage_tier, location, size_bytes, raw_size_bytes,
	compressed, codec, schema_version, digest, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHead(row rowScanner) (Head, error) {
	var (
		h          Head
		stage      string
		tier       string
		codec      string
		compressed int
		createdAt  string
	)
	if err := row.Scan(&h.ProjectID, &stage, &tier, &h.Location, &h.SizeBytes, &h.RawSizeBytes,
		&compressed, &codec, &h.SchemaVersion, &h.Digest, &createdAt); err != nil {
		return Head{}, err
	}
	h.StageType = stagedoc.StageType(stage)
	h.StorageTier = stagedoc.Tier(tier)
	h.Codec = stagedoc.Codec(codec)
	h.Compressed = compressed != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		h.CreatedAt = ts
	}
	return h, nil
}

func getHead(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, projectID string, stage stagedoc.StageType) (Head, bool, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+headColumns+" FROM context_heads WHERE project_id = ? AND stage_type = ?",
		projectID, string(stage))
	head, err := scanHead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Head{}, false, nil
	}
	if err != nil {
		return Head{}, false, err
	}
	return head, true, nil
}

// swapHead upserts next and returns the head it replaced, if any, in one
// transaction so the caller knows exactly which bytes became stale.
func swapHead(ctx context.Context, db *sql.DB, next Head) (Head, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Head{}, false, fmt.Errorf("begin head tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, existed, err := getHead(ctx, tx, next.ProjectID, next.StageType)
	if err != nil {
		return Head{}, false, err
	}
	compressed := 0
	if next.Compressed {
		compressed = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO context_heads (`+headColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, stage_type) DO UPDATE SET
			storage_tier = excluded.storage_tier,
			location = excluded.location,
			size_bytes = excluded.size_bytes,
			raw_size_bytes = excluded.raw_size_bytes,
			compressed = excluded.compressed,
			codec = excluded.codec,
			schema_version = excluded.schema_version,
			digest = excluded.digest,
			created_at = excluded.created_at`,
		next.ProjectID, string(next.StageType), string(next.StorageTier), next.Location,
		next.SizeBytes, next.RawSizeBytes, compressed, string(next.Codec),
		next.SchemaVersion, next.Digest, next.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Head{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Head{}, false, err
	}
	return prev, existed, nil
}

func listHeads(ctx context.Context, db *sql.DB, projectID string) ([]Head, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+headColumns+" FROM context_heads WHERE project_id = ? ORDER BY stage_type",
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var heads []Head
	for rows.Next() {
		head, err := scanHead(rows)
		if err != nil {
			return nil, err
		}
		heads = append(heads, head)
	}
	return heads, rows.Err()
}

func listProjects(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT project_id FROM context_heads ORDER BY project_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		projects = append(projects, id)
	}
	return projects, rows.Err()
}
