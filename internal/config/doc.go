// Package config loads and validates tinct's TOML configuration.
package config
