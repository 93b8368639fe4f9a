package config

import (
	"errors"
	"fmt"
	"strings"

	"tinct/internal/settings"
)

// Validate ensures the configuration is usable. Batch defaults use the
// strict settings rules, so a broken config file fails loudly instead
// of being silently repaired.
func (c *Config) Validate() error {
	if err := c.validateColorizer(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateColorizer() error {
	if strings.TrimSpace(c.Colorizer.Endpoint) == "" {
		return errors.New("colorizer.endpoint must be set")
	}
	if c.Colorizer.TimeoutSeconds <= 0 {
		return errors.New("colorizer.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if err := settings.ValidateStrict(settings.StrictMap(c.BatchSettings())); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.Threshold <= 0 || c.Memory.Threshold > 1 {
		return errors.New("memory.threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format %q must be console, json, or auto", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
