package contextstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"framecast/internal/config"
	"framecast/internal/dbutil"
	"framecast/internal/logging"
	"framecast/internal/retry"
	"framecast/internal/schema"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

const (
	// versionLen hex digits of the content digest name each stored copy.
	versionLen      = 16
	maxReadAttempts = 5
)

// Options tune encoding and tiering.
type Options struct {
	// InlineThreshold is the largest stored size in bytes kept inline.
	InlineThreshold  int
	Codec            stagedoc.Codec
	CompressionRatio float64
	Retry            retry.Policy
	Now              func() time.Time
}

// OptionsFromConfig reads the [store] and [retry] sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	codec, err := stagedoc.ParseCodec(cfg.Store.Compression)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "contextstore", "options", "", err)
	}
	return Options{
		InlineThreshold:  cfg.InlineThresholdBytes(),
		Codec:            codec,
		CompressionRatio: cfg.Store.CompressionRatio,
		Retry:            retry.FromConfig(cfg),
	}, nil
}

// Store persists context documents.
type Store struct {
	db       *sql.DB
	registry *schema.Registry
	inline   *InlineBackend
	objects  *ObjectBackend
	opts     Options
	logger   *slog.Logger

	// writeMu serializes writes so stale-location cleanup never races a
	// concurrent writer for the same key within this process.
	writeMu sync.Mutex
	swap    func(context.Context, *sql.DB, Head) (Head, bool, error)
}

// Open opens (creating if needed) the index database at dbPath and stores
// offloaded objects beneath projectsDir.
func Open(ctx context.Context, dbPath, projectsDir string, registry *schema.Registry, opts Options, logger *slog.Logger) (*Store, error) {
	if registry == nil {
		registry = schema.NewRegistry(schema.DefaultLimits())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Codec == "" {
		opts.Codec = stagedoc.CodecNone
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}
	db, err := dbutil.Open(ctx, dbPath, schemaSQL, schemaVersion)
	if err != nil {
		return nil, fmt.Errorf("open context index: %w", err)
	}
	return &Store{
		db:       db,
		registry: registry,
		inline:   NewInlineBackend(db),
		objects:  NewObjectBackend(projectsDir),
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "contextstore"),
		swap:     swapHead,
	}, nil
}

// OpenFromConfig opens the store at the configured locations.
func OpenFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	registry := schema.NewRegistry(schema.LimitsFromConfig(cfg))
	return Open(ctx, cfg.ContextDBPath(), cfg.ProjectsDir(), registry, opts, logger)
}

// Close releases the index database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Registry returns the validators the store enforces on write.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

func (s *Store) backend(tier stagedoc.Tier) (Backend, error) {
	switch tier {
	case stagedoc.TierInline:
		return s.inline, nil
	case stagedoc.TierOffloaded:
		return s.objects, nil
	default:
		return nil, services.Wrap(services.ErrFatal, "contextstore", "backend", fmt.Sprintf("unknown storage tier %q", tier), nil)
	}
}

// Store validates payload and makes it the current document for its stage
// type. Invalid payloads are rejected before anything is written.
func (s *Store) Store(ctx context.Context, projectID string, payload stagedoc.Payload) (Head, error) {
	if err := textutil.ValidateProjectID(projectID); err != nil {
		return Head{}, services.Wrap(services.ErrValidation, "contextstore", "store", "", err)
	}
	if err := s.registry.Validate(payload, stagedoc.CurrentSchemaVersion); err != nil {
		return Head{}, err
	}
	stage := payload.StageType()
	raw, err := stagedoc.Encode(payload)
	if err != nil {
		return Head{}, services.Wrap(services.ErrFatal, stage.String(), "store", "encode", err)
	}
	encoded, err := compressIfBeneficial(raw, s.opts.Codec, s.opts.CompressionRatio)
	if err != nil {
		return Head{}, services.Wrap(services.ErrFatal, stage.String(), "store", "compress", err)
	}
	tier := SelectTier(len(encoded.data), s.opts.InlineThreshold)
	backend, err := s.backend(tier)
	if err != nil {
		return Head{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sum := digest(raw)
	var location string
	err = s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var putErr error
		location, putErr = backend.Put(ctx, Object{
			ProjectID: projectID,
			Stage:     stage,
			Codec:     encoded.codec,
			Version:   sum[:versionLen],
			Data:      encoded.data,
		})
		return putErr
	})
	if err != nil {
		return Head{}, err
	}

	head := Head{
		ProjectID:     projectID,
		StageType:     stage,
		StorageTier:   tier,
		Location:      location,
		SizeBytes:     len(encoded.data),
		RawSizeBytes:  len(raw),
		Compressed:    encoded.compressed,
		Codec:         encoded.codec,
		SchemaVersion: stagedoc.CurrentSchemaVersion,
		Digest:        sum,
		CreatedAt:     s.opts.Now().UTC(),
	}

	var (
		prev    Head
		existed bool
	)
	err = s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var swapErr error
		prev, existed, swapErr = s.swap(ctx, s.db, head)
		return classifyIndex("swap head", swapErr)
	})
	if err != nil {
		s.discardUnreferenced(ctx, head)
		return Head{}, err
	}

	if existed && (prev.StorageTier != head.StorageTier || prev.Location != head.Location) {
		s.removeStale(ctx, prev)
	}

	s.logger.Debug("context stored",
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldStage, stage.String()),
		logging.String("storage_tier", string(tier)),
		logging.Int("size_bytes", head.SizeBytes),
		logging.Int("raw_size_bytes", head.RawSizeBytes),
		logging.String("codec", string(head.Codec)),
	)
	return head, nil
}

// discardUnreferenced removes bytes written for a head that never became
// current. Identical content rewritten at the current location is kept.
func (s *Store) discardUnreferenced(ctx context.Context, written Head) {
	current, found, err := getHead(ctx, s.db, written.ProjectID, written.StageType)
	if err != nil {
		s.logger.Warn("orphaned context left after failed head swap",
			logging.String("location", written.Location),
			logging.Error(err),
		)
		return
	}
	if found && current.StorageTier == written.StorageTier && current.Location == written.Location {
		return
	}
	s.removeStale(ctx, written)
}

// removeStale deletes bytes no longer referenced by any head. Failures only
// leave an orphan behind, so they are logged rather than returned.
func (s *Store) removeStale(ctx context.Context, prev Head) {
	backend, err := s.backend(prev.StorageTier)
	if err != nil {
		s.logger.Warn("stale context cleanup skipped", logging.Error(err))
		return
	}
	err = s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return backend.Delete(ctx, prev.Location)
	})
	if err != nil {
		s.logger.Warn("stale context cleanup failed",
			logging.String(logging.FieldProjectID, prev.ProjectID),
			logging.String(logging.FieldStage, prev.StageType.String()),
			logging.String("location", prev.Location),
			logging.Error(err),
			logging.String(logging.FieldEventType, "context_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the orphaned object manually"),
		)
	}
}

// Retrieve returns the current document for (projectID, stage). A missing
// head is reported as a not-found error: the upstream stage has not run.
func (s *Store) Retrieve(ctx context.Context, projectID string, stage stagedoc.StageType) (stagedoc.Document, error) {
	head, stored, err := s.readCurrent(ctx, projectID, stage)
	if err != nil {
		return stagedoc.Document{}, err
	}

	codec := stagedoc.CodecNone
	if head.Compressed {
		codec = head.Codec
	}
	raw, err := decompress(stored, codec, head.RawSizeBytes)
	if err != nil {
		return stagedoc.Document{}, services.Wrap(services.ErrFatal, stage.String(), "retrieve", "decompress", err)
	}
	if got := digest(raw); got != head.Digest {
		return stagedoc.Document{}, services.Wrap(services.ErrFatal, stage.String(), "retrieve",
			fmt.Sprintf("digest mismatch for %s (stored %s, computed %s)", head.Location, head.Digest, got), nil)
	}
	payload, err := stagedoc.Decode(stage, head.SchemaVersion, raw)
	if err != nil {
		marker := services.ErrFatal
		if errors.Is(err, stagedoc.ErrUnsupportedVersion) {
			marker = services.ErrValidation
		}
		return stagedoc.Document{}, services.Wrap(marker, stage.String(), "retrieve", "decode", err)
	}

	return stagedoc.Document{
		ProjectID:     projectID,
		StageType:     stage,
		Payload:       payload,
		CreatedAt:     head.CreatedAt,
		SizeBytes:     head.SizeBytes,
		RawSizeBytes:  head.RawSizeBytes,
		Compressed:    head.Compressed,
		Codec:         head.Codec,
		StorageTier:   head.StorageTier,
		SchemaVersion: head.SchemaVersion,
		Digest:        head.Digest,
	}, nil
}

// readCurrent fetches the head and its bytes. A writer may swap the head and
// delete the old bytes between the two reads; the read then follows the new
// head instead of failing.
func (s *Store) readCurrent(ctx context.Context, projectID string, stage stagedoc.StageType) (Head, []byte, error) {
	var lastErr error
	for range maxReadAttempts {
		head, err := s.Head(ctx, projectID, stage)
		if err != nil {
			return Head{}, nil, err
		}
		backend, err := s.backend(head.StorageTier)
		if err != nil {
			return Head{}, nil, err
		}
		var stored []byte
		err = s.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var getErr error
			stored, getErr = backend.Get(ctx, head.Location)
			return getErr
		})
		if err == nil {
			return head, stored, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return Head{}, nil, err
		}
		lastErr = err
		if moved, _ := s.headMoved(ctx, head); !moved {
			break
		}
	}
	return Head{}, nil, lastErr
}

func (s *Store) headMoved(ctx context.Context, seen Head) (bool, error) {
	current, found, err := getHead(ctx, s.db, seen.ProjectID, seen.StageType)
	if err != nil || !found {
		return false, err
	}
	return current.StorageTier != seen.StorageTier || current.Location != seen.Location, nil
}

// Head returns the index entry for (projectID, stage) without reading the bytes.
func (s *Store) Head(ctx context.Context, projectID string, stage stagedoc.StageType) (Head, error) {
	var (
		head  Head
		found bool
	)
	err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var lookupErr error
		head, found, lookupErr = getHead(ctx, s.db, projectID, stage)
		return classifyIndex("head lookup", lookupErr)
	})
	if err != nil {
		return Head{}, err
	}
	if !found {
		return Head{}, services.Wrap(services.ErrNotFound, stage.String(), "retrieve",
			fmt.Sprintf("no %s context for project %s", stage, projectID), nil)
	}
	return head, nil
}

// List returns the heads recorded for projectID in pipeline order.
func (s *Store) List(ctx context.Context, projectID string) ([]Head, error) {
	var heads []Head
	err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var listErr error
		heads, listErr = listHeads(ctx, s.db, projectID)
		return classifyIndex("list heads", listErr)
	})
	if err != nil {
		return nil, err
	}
	order := stagedoc.AllStages()
	slices.SortFunc(heads, func(a, b Head) int {
		return slices.Index(order, a.StageType) - slices.Index(order, b.StageType)
	})
	return heads, nil
}

// Projects returns every project with at least one stored document.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	var projects []string
	err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var listErr error
		projects, listErr = listProjects(ctx, s.db)
		return classifyIndex("list projects", listErr)
	})
	return projects, err
}

func classifyIndex(operation string, err error) error {
	if err == nil {
		return nil
	}
	return classifyDB(operation, err)
}
