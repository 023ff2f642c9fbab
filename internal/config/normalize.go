package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizePipeline()
	if err := c.normalizePolicy(); err != nil {
		return err
	}
	c.normalizeNarration()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.MediaLibraryDir, err = expandPath(strings.TrimSpace(c.Paths.MediaLibraryDir)); err != nil {
		return fmt.Errorf("paths.media_library_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("FRAMECAST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Compression = strings.ToLower(strings.TrimSpace(c.Store.Compression))
	if c.Store.Compression == "" {
		c.Store.Compression = defaultCompression
	}
	if c.Store.CompressionRatio == 0 {
		c.Store.CompressionRatio = defaultCompressionRatio
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.AsyncWorkers <= 0 {
		c.Pipeline.AsyncWorkers = defaultAsyncWorkers
	}
	stages := make([]string, 0, len(c.Pipeline.OptionalStages))
	seen := make(map[string]struct{}, len(c.Pipeline.OptionalStages))
	for _, name := range c.Pipeline.OptionalStages {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		stages = append(stages, name)
	}
	c.Pipeline.OptionalStages = stages
}

func (c *Config) normalizePolicy() error {
	c.Policy.PolicyFile = strings.TrimSpace(c.Policy.PolicyFile)
	if c.Policy.PolicyFile == "" {
		return nil
	}
	expanded, err := expandPath(c.Policy.PolicyFile)
	if err != nil {
		return fmt.Errorf("policy.policy_file: %w", err)
	}
	c.Policy.PolicyFile = expanded
	return nil
}

func (c *Config) normalizeNarration() {
	c.Narration.Voice = strings.TrimSpace(c.Narration.Voice)
	if c.Narration.Voice == "" {
		c.Narration.Voice = defaultNarrationVoice
	}
	if c.Narration.WordsPerMinute <= 0 {
		c.Narration.WordsPerMinute = defaultWordsPerMinute
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("FRAMECAST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
