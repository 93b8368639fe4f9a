package config

import "tinct/internal/settings"

const (
	defaultOutputDir          = "~/tinct/output"
	defaultLogDir             = "~/.local/share/tinct/logs"
	defaultColorizerEndpoint  = "http://127.0.0.1:8188"
	defaultColorizerTimeout   = 600
	defaultMemoryThreshold    = 0.85
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultHistoryPath        = "~/.local/share/tinct/history.db"
	defaultHistoryEnabled     = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	batch := settings.Defaults()
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Colorizer: Colorizer{
			Endpoint:       defaultColorizerEndpoint,
			TimeoutSeconds: defaultColorizerTimeout,
		},
		Batch: Batch{
			Style:          batch.Style,
			Seed:           batch.Seed,
			InferenceSteps: batch.InferenceSteps,
			TopK:           batch.TopK,
			MaxConcurrent:  batch.MaxConcurrent,
		},
		Memory: Memory{
			Threshold: defaultMemoryThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
			Path:    defaultHistoryPath,
		},
	}
}

// BatchSettings converts the batch section into effective settings.
func (c *Config) BatchSettings() settings.Settings {
	return settings.Settings{
		Style:           c.Batch.Style,
		Seed:            c.Batch.Seed,
		InferenceSteps:  c.Batch.InferenceSteps,
		TopK:            c.Batch.TopK,
		Recursive:       c.Batch.Recursive,
		Overwrite:       c.Batch.Overwrite,
		PreviewMode:     c.Batch.PreviewMode,
		MaxConcurrent:   c.Batch.MaxConcurrent,
		ReferenceImages: c.Batch.ReferenceImages,
	}
}
