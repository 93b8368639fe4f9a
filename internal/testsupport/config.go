package testsupport

import (
	"path/filepath"
	"testing"

	"tinct/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Colorizer.Endpoint = "http://127.0.0.1:0"
	cfg.History.Path = filepath.Join(base, "history.db")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithEndpoint overrides the colorizer endpoint on the test config.
func WithEndpoint(endpoint string) ConfigOption {
	return func(c *config.Config) {
		c.Colorizer.Endpoint = endpoint
	}
}

// WithPreviewMode enables preview mode on the test config.
func WithPreviewMode() ConfigOption {
	return func(c *config.Config) {
		c.Batch.PreviewMode = true
	}
}
