package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// EnsureDirectories creates the data, log and projects directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.ProjectsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProjectsDir holds one directory per project: offloaded contexts, the
// manifest and the publish receipt.
func (c *Config) ProjectsDir() string { return filepath.Join(c.Paths.DataDir, "projects") }

// PublishDir receives copies of rendered outputs that passed the gate.
func (c *Config) PublishDir() string { return filepath.Join(c.Paths.DataDir, "published") }

func (c *Config) ContextDBPath() string { return filepath.Join(c.Paths.DataDir, "contexts.db") }

func (c *Config) QueueDBPath() string { return filepath.Join(c.Paths.DataDir, "queue.db") }

// InlineThresholdBytes is the largest stored document kept in SQLite.
func (c *Config) InlineThresholdBytes() int { return c.Store.InlineThresholdKB << 10 }

// SyncBudget is how long a synchronous call may run before work is handed
// to the queue.
func (c *Config) SyncBudget() time.Duration {
	return time.Duration(c.Pipeline.SyncBudgetSeconds) * time.Second
}

// SafetyMargin is reserved out of SyncBudget for writing the response.
func (c *Config) SafetyMargin() time.Duration {
	return time.Duration(c.Pipeline.SafetyMarginSeconds) * time.Second
}

// StageOptional reports whether a failure of stage may be skipped.
func (c *Config) StageOptional(stage string) bool {
	stage = strings.ToLower(strings.TrimSpace(stage))
	return slices.ContainsFunc(c.Pipeline.OptionalStages, func(name string) bool {
		return strings.ToLower(strings.TrimSpace(name)) == stage
	})
}
