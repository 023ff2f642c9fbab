// Package daemonrun assembles and runs the framecast daemon process: it
// sets up per-run logging, opens the runtime, and serves until signalled.
package daemonrun

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"framecast/internal/api"
	"framecast/internal/config"
	"framecast/internal/daemon"
	"framecast/internal/fileutil"
	"framecast/internal/logging"
	"framecast/internal/logs"
	"framecast/internal/pipeline"
	"framecast/internal/preflight"
)

// PIDFileName records the running daemon's pid under the data directory.
const PIDFileName = "framecast.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the framecast daemon and blocks until cmdCtx ends or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := runLogger(cfg, opts)
	if err != nil {
		return err
	}
	logConfigSnapshot(ctx, logger, cfg)

	rt, err := pipeline.Open(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("open runtime", logging.Error(err))
		return err
	}
	d, err := daemon.New(cfg, rt, api.FromRuntime(rt, opts.Version, logger), logger)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and database access"),
		)
		return err
	}

	// The pid is recorded only once the daemon holds its lock, so a
	// second instance never overwrites the first one's file.
	pidPath := filepath.Join(cfg.Paths.DataDir, PIDFileName)
	if err := fileutil.WriteFileAtomic(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-ctx.Done()
	logger.Info("framecast daemon shutting down", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

// runLogger writes to stdout and a per-run file, and repoints the
// framecast.log link at that file.
func runLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, "framecast-"+stamp+".log")
	logger, err := logging.New(logging.Options{
		Level:       cmp.Or(strings.TrimSpace(opts.LogLevel), cfg.Logging.Level),
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		logger.Warn("log pointer not updated",
			logging.Error(err),
			logging.String(logging.FieldEventType, "log_pointer_failed"),
		)
	}
	return logger, nil
}

// ensureCurrentLogPointer makes logs.CurrentPath(logDir) refer to target,
// falling back to a hard link where symlinks are unsupported.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if os.Symlink(target, current) == nil {
		return nil
	}
	return os.Link(target, current)
}

// ReadPID returns the pid of a live daemon, or 0 when none is recorded or
// the recorded process has exited.
func ReadPID(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.DataDir, PIDFileName))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return 0
	}
	return pid
}

func logConfigSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("media_library_dir", cfg.Paths.MediaLibraryDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Int("inline_threshold_kb", cfg.Store.InlineThresholdKB),
		logging.String("compression", cfg.Store.Compression),
		logging.Int("sync_budget_seconds", cfg.Pipeline.SyncBudgetSeconds),
		logging.Int("async_workers", cfg.Pipeline.AsyncWorkers),
		logging.Strings("optional_stages", cfg.Pipeline.OptionalStages),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	for _, check := range preflight.RunAll(ctx, cfg) {
		if check.Passed {
			continue
		}
		key := "preflight_" + strings.ReplaceAll(strings.ToLower(check.Name), " ", "_")
		attrs = append(attrs, logging.String(key, check.Detail))
	}
	logger.Info("configuration snapshot", logging.Args(attrs...)...)
}
