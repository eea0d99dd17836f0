package config

import (
	"time"
)

// Config is the on-disk configuration for runtrigger.
//
// Both JSON and YAML are accepted; YAML is coerced to JSON and decoded
// strictly, so unknown keys are rejected.
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Editor  EditorConfig   `json:"editor"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format of console output: "console" (default) or "json".
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls where recurring runs are persisted.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./runtrigger.db", "busy_timeout": "5s" }
//
// Driver is one of "file", "sqlite" or "none". A nil section means "none".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// EditorConfig tunes the trigger edit session.
//
// Defaults (when fields are omitted/zero):
//   - default_end_offset: "168h"
//   - preview_count: 5
//   - emit_log_rate_per_sec: 2
type EditorConfig struct {
	// DefaultEndOffset is added to "now" to seed the end bound when a run has none.
	DefaultEndOffset  string `json:"default_end_offset,omitempty"`
	PreviewCount      int    `json:"preview_count,omitempty"`
	EmitLogRatePerSec int    `json:"emit_log_rate_per_sec,omitempty"`
}

const (
	DefaultEndOffset         = 7 * 24 * time.Hour
	DefaultPreviewCount      = 5
	DefaultEmitLogRatePerSec = 2
	DefaultBusyTimeout       = 5 * time.Second
)

// EditorSettings is EditorConfig with defaults applied and durations parsed.
type EditorSettings struct {
	DefaultEndOffset  time.Duration
	PreviewCount      int
	EmitLogRatePerSec int
}

func (c EditorConfig) Settings() (EditorSettings, error) {
	off, err := ParseDurationOrDefault("editor.default_end_offset", c.DefaultEndOffset, DefaultEndOffset)
	if err != nil {
		return EditorSettings{}, err
	}
	s := EditorSettings{
		DefaultEndOffset:  off,
		PreviewCount:      c.PreviewCount,
		EmitLogRatePerSec: c.EmitLogRatePerSec,
	}
	if s.PreviewCount <= 0 {
		s.PreviewCount = DefaultPreviewCount
	}
	if s.EmitLogRatePerSec <= 0 {
		s.EmitLogRatePerSec = DefaultEmitLogRatePerSec
	}
	return s, nil
}

// Default is used when no config file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: &StorageConfig{Driver: "file", Path: "./runtrigger_store"},
	}
}
