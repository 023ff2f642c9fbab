package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var knownStages = []string{"topic", "scene", "media", "audio", "assembly", "manifest", "publish"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validatePolicy(); err != nil {
		return err
	}
	if err := c.validateSchema(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.InlineThresholdKB <= 0 {
		return errors.New("store.inline_threshold_kb must be positive")
	}
	switch c.Store.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("store.compression: unsupported value %q (use zstd, lz4, or none)", c.Store.Compression)
	}
	if c.Store.CompressionRatio <= 0 || c.Store.CompressionRatio > 1 {
		return errors.New("store.compression_ratio must be greater than 0 and at most 1")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.max_attempts":  c.Retry.MaxAttempts,
		"retry.base_delay_ms": c.Retry.BaseDelayMS,
		"retry.max_delay_ms":  c.Retry.MaxDelayMS,
	}); err != nil {
		return err
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be >= retry.base_delay_ms")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return errors.New("retry.jitter must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.sync_budget_seconds": c.Pipeline.SyncBudgetSeconds,
		"pipeline.async_workers":       c.Pipeline.AsyncWorkers,
	}); err != nil {
		return err
	}
	if c.Pipeline.SafetyMarginSeconds < 0 {
		return errors.New("pipeline.safety_margin_seconds must be >= 0")
	}
	if c.Pipeline.SafetyMarginSeconds >= c.Pipeline.SyncBudgetSeconds {
		return errors.New("pipeline.safety_margin_seconds must be less than pipeline.sync_budget_seconds")
	}
	for _, stage := range c.Pipeline.OptionalStages {
		if !slices.Contains(knownStages, stage) {
			return fmt.Errorf("pipeline.optional_stages: unknown stage %q (known: %s)", stage, strings.Join(knownStages, ", "))
		}
		if stage == "manifest" {
			return errors.New("pipeline.optional_stages: the manifest gate cannot be optional")
		}
	}
	return nil
}

func (c *Config) validatePolicy() error {
	if c.Policy.MinVisualsPerScene < 0 {
		return errors.New("policy.min_visuals_per_scene must be >= 0")
	}
	if c.Policy.MaxAudioDriftSeconds < 0 {
		return errors.New("policy.max_audio_drift_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateSchema() error {
	s := c.Schema
	if s.DurationToleranceSeconds < 0 {
		return errors.New("schema.duration_tolerance_seconds must be >= 0")
	}
	if s.HookMinSeconds < 0 || s.HookMaxSeconds <= s.HookMinSeconds {
		return errors.New("schema.hook_max_seconds must be greater than schema.hook_min_seconds (both >= 0)")
	}
	if s.ConclusionMinSeconds < 0 || s.ConclusionMaxSeconds <= s.ConclusionMinSeconds {
		return errors.New("schema.conclusion_max_seconds must be greater than schema.conclusion_min_seconds (both >= 0)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
