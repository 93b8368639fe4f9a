package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBatch(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeColorizer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBatch() error {
	c.Batch.Style = strings.TrimSpace(c.Batch.Style)
	if c.Batch.SettingsFile != "" {
		expanded, err := expandPath(c.Batch.SettingsFile)
		if err != nil {
			return fmt.Errorf("batch.settings_file: %w", err)
		}
		c.Batch.SettingsFile = expanded
	}
	for i, ref := range c.Batch.ReferenceImages {
		expanded, err := expandPath(ref)
		if err != nil {
			return fmt.Errorf("batch.reference_images[%d]: %w", i, err)
		}
		c.Batch.ReferenceImages[i] = expanded
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	expanded, err := expandPath(c.History.Path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}

func (c *Config) normalizeColorizer() {
	c.Colorizer.Endpoint = strings.TrimRight(strings.TrimSpace(c.Colorizer.Endpoint), "/")
	if c.Colorizer.TimeoutSeconds <= 0 {
		c.Colorizer.TimeoutSeconds = defaultColorizerTimeout
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
