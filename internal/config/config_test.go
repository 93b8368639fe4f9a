package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tinct/internal/config"
	"tinct/internal/settings"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Batch.Style != settings.StyleLineShadow {
		t.Fatalf("unexpected default style %q", cfg.Batch.Style)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if resolved == "" {
		t.Fatal("resolved path should still be reported")
	}
	if cfg.Colorizer.Endpoint == "" {
		t.Fatal("defaults not applied")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
[colorizer]
endpoint = "http://gpu-box:9000/"
timeout_seconds = 120

[batch]
style = "line"
seed = 7
preview_mode = true

[memory]
threshold = 0.5
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("existing file reported as missing")
	}
	if cfg.Colorizer.Endpoint != "http://gpu-box:9000" {
		t.Fatalf("endpoint not normalized: %q", cfg.Colorizer.Endpoint)
	}
	if cfg.Batch.Style != settings.StyleLine || cfg.Batch.Seed != 7 || !cfg.Batch.PreviewMode {
		t.Fatalf("batch overrides not applied: %+v", cfg.Batch)
	}
	if cfg.Memory.Threshold != 0.5 {
		t.Fatalf("memory threshold not applied: %f", cfg.Memory.Threshold)
	}
	// Untouched sections keep defaults.
	if cfg.Batch.InferenceSteps != settings.Defaults().InferenceSteps {
		t.Fatalf("default inference steps lost: %d", cfg.Batch.InferenceSteps)
	}
}

func TestLoadExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
output_dir = "~/colorized"

[batch]
settings_file = "~/settings.json"
reference_images = ["~/refs/palette.png"]
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if cfg.Paths.OutputDir != filepath.Join(home, "colorized") {
		t.Fatalf("output_dir not expanded: %q", cfg.Paths.OutputDir)
	}
	if cfg.Batch.SettingsFile != filepath.Join(home, "settings.json") {
		t.Fatalf("settings_file not expanded: %q", cfg.Batch.SettingsFile)
	}
	if cfg.Batch.ReferenceImages[0] != filepath.Join(home, "refs", "palette.png") {
		t.Fatalf("reference image not expanded: %q", cfg.Batch.ReferenceImages[0])
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		keyword string
	}{
		{"empty endpoint", func(c *config.Config) { c.Colorizer.Endpoint = "" }, "endpoint"},
		{"zero timeout", func(c *config.Config) { c.Colorizer.TimeoutSeconds = 0 }, "timeout"},
		{"bad style", func(c *config.Config) { c.Batch.Style = "watercolor" }, "style"},
		{"negative seed", func(c *config.Config) { c.Batch.Seed = -1 }, "seed"},
		{"zero steps", func(c *config.Config) { c.Batch.InferenceSteps = 0 }, "numInferenceSteps"},
		{"threshold too high", func(c *config.Config) { c.Memory.Threshold = 1.5 }, "threshold"},
		{"threshold zero", func(c *config.Config) { c.Memory.Threshold = 0 }, "threshold"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "format"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }, "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.keyword) {
				t.Fatalf("error %q does not mention %q", err, tt.keyword)
			}
		})
	}
}

func TestBatchValidationCollectsAllViolations(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.Style = "watercolor"
	cfg.Batch.Seed = -5
	cfg.Batch.TopK = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, keyword := range []string{"style", "seed", "topK"} {
		if !strings.Contains(err.Error(), keyword) {
			t.Fatalf("error %q missing violation for %q", err, keyword)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[colorizer]") {
		t.Fatal("sample config missing colorizer section")
	}

	// The sample's commented defaults must load and validate.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "state", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, filepath.Dir(cfg.History.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("directory %s missing: %v", dir, err)
		}
	}
}
