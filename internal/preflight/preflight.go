package preflight

import (
	"context"
	"strings"

	"framecast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
	Advisory bool   `json:"advisory,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Projects directory", cfg.ProjectsDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	// Without a library every visual is a placeholder, which the gate
	// reports, so the library never blocks readiness.
	if strings.TrimSpace(cfg.Paths.MediaLibraryDir) != "" {
		lib := CheckDirectoryAccess("Media library", cfg.Paths.MediaLibraryDir)
		lib.Advisory = true
		results = append(results, lib)
	}

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		results = append(results, CheckNtfy(ctx, topic))
	}
	return results
}

// Ready reports whether every non-advisory check passed.
func Ready(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			return false
		}
	}
	return true
}
