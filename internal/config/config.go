package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	MediaLibraryDir string `toml:"media_library_dir"`
	APIBind         string `toml:"api_bind"`
	APIToken        string `toml:"api_token"`
}

// Store controls how context documents are encoded and tiered.
type Store struct {
	// InlineThresholdKB is the largest stored size (after optional
	// compression) kept in the inline tier. Larger documents are offloaded.
	InlineThresholdKB int `toml:"inline_threshold_kb"`
	// Compression selects the codec: "zstd", "lz4", or "none".
	Compression string `toml:"compression"`
	// CompressionRatio is the fraction of the raw size the compressed form
	// must stay strictly below to be kept.
	CompressionRatio float64 `toml:"compression_ratio"`
}

// Retry contains the shared retry policy for transient failures.
type Retry struct {
	MaxAttempts int     `toml:"max_attempts"`
	BaseDelayMS int     `toml:"base_delay_ms"`
	MaxDelayMS  int     `toml:"max_delay_ms"`
	Jitter      float64 `toml:"jitter"`
}

// Pipeline contains coordinator timing and stage policy.
type Pipeline struct {
	SyncBudgetSeconds   int      `toml:"sync_budget_seconds"`
	SafetyMarginSeconds int      `toml:"safety_margin_seconds"`
	AsyncWorkers        int      `toml:"async_workers"`
	OptionalStages      []string `toml:"optional_stages"`
}

// Policy holds the default quality-gate thresholds used by manifest.build
// when the caller does not override them.
type Policy struct {
	MinVisualsPerScene   int     `toml:"min_visuals_per_scene"`
	AllowPlaceholders    bool    `toml:"allow_placeholders"`
	RequireMasterAudio   bool    `toml:"require_master_audio"`
	RequireAudioParity   bool    `toml:"require_audio_parity"`
	MaxAudioDriftSeconds float64 `toml:"max_audio_drift_seconds"`
	// PolicyFile optionally points at a YAML file of named policy presets.
	PolicyFile string `toml:"policy_file"`
}

// Schema holds tolerances enforced by the context schema validators.
type Schema struct {
	DurationToleranceSeconds float64 `toml:"duration_tolerance_seconds"`
	HookMinSeconds           float64 `toml:"hook_min_seconds"`
	HookMaxSeconds           float64 `toml:"hook_max_seconds"`
	ConclusionMinSeconds     float64 `toml:"conclusion_min_seconds"`
	ConclusionMaxSeconds     float64 `toml:"conclusion_max_seconds"`
}

// Narration contains defaults for the narration stage.
type Narration struct {
	Voice          string `toml:"voice"`
	WordsPerMinute int    `toml:"words_per_minute"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	QualityGate    bool   `toml:"quality_gate"`
	Pipeline       bool   `toml:"pipeline"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for framecast.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, media library, API bind address
//   - Store: context document tiering and compression
//   - Retry: backoff policy for transient failures
//   - Pipeline: synchronous budget, async workers, optional stages
//   - Policy: default quality-gate thresholds
//   - Schema: validator tolerances and segment windows
//   - Narration: default voice and speaking rate
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Retry         Retry         `toml:"retry"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Policy        Policy        `toml:"policy"`
	Schema        Schema        `toml:"schema"`
	Narration     Narration     `toml:"narration"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// EnvConfigPath names an environment variable that overrides the config
// search when no explicit path is given.
const EnvConfigPath = "FRAMECAST_CONFIG"

// DefaultConfigPath is ~/.config/framecast/config.toml, expanded.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/framecast/config.toml")
}

// Load reads the config at path, or searches $FRAMECAST_CONFIG, the default
// path and ./framecast.toml when path is empty. A missing file yields the
// defaults. It also returns the path it settled on and whether that file
// existed. Unknown keys are rejected.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse %s: %w", resolved, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(explicit string) (string, bool, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if explicit != "" {
		p, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		found, err := isFile(p)
		return p, found, err
	}

	fallback, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	local, err := filepath.Abs("framecast.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{fallback, local} {
		if found, _ := isFile(candidate); found {
			return candidate, true, nil
		}
	}
	return fallback, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !info.IsDir(), nil
}

// ExpandPath resolves a leading ~ and makes value absolute.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
