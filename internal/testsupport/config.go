package testsupport

import (
	"path/filepath"
	"testing"

	"framecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MediaLibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelayMS = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithInlineThresholdKB overrides the inline tier threshold.
func WithInlineThresholdKB(kb int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.InlineThresholdKB = kb
	}
}

// WithCompression selects the context store codec.
func WithCompression(codec string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Compression = codec
	}
}

// WithSyncBudget sets the coordinator's synchronous budget and safety margin.
func WithSyncBudget(budgetSeconds, marginSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.SyncBudgetSeconds = budgetSeconds
		b.cfg.Pipeline.SafetyMarginSeconds = marginSeconds
	}
}

// WithAPIToken sets the bearer token required by the daemon.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
