package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Validate rejects configs that would fail later at apply time.
// ConfigManager.Watch uses it (via SetValidator) before publishing a reload.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := cfg.Editor.Settings(); err != nil {
		return err
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: %w: %q", ErrUnknownDriver, cfg.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	switch strings.ToUpper(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: want console or json, got %q", cfg.Logging.Format)
	}
	return nil
}
