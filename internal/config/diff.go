package config

import (
	"sort"
	"strings"

	logx "runtrigger/pkg/logx"
)

// SummarizeConfigChange returns the sorted list of changed sections and
// structured attrs describing the new values, for a single reload log line.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 3)
	attrs := make([]logx.Field, 0, 10)

	ol, nl := oldCfg.Logging, newCfg.Logging
	if !strings.EqualFold(strings.TrimSpace(ol.Level), strings.TrimSpace(nl.Level)) ||
		ol.Console != nl.Console ||
		!strings.EqualFold(strings.TrimSpace(ol.Format), strings.TrimSpace(nl.Format)) ||
		ol.File.Enabled != nl.File.Enabled ||
		strings.TrimSpace(ol.File.Path) != strings.TrimSpace(nl.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console),
			logx.String("logging.format", nl.Format),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
		)
	}

	oldS, newS := storageView(oldCfg.Storage), storageView(newCfg.Storage)
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newS.driver),
			logx.String("storage.path", newS.path),
			logx.String("storage.busy_timeout", newS.busy),
		)
	}

	// Compare effective settings so "" and the default count as equal.
	oe, oerr := oldCfg.Editor.Settings()
	ne, nerr := newCfg.Editor.Settings()
	if oe != ne || (oerr == nil) != (nerr == nil) {
		changed = append(changed, "editor")
		attrs = append(attrs,
			logx.Duration("editor.default_end_offset", ne.DefaultEndOffset),
			logx.Int("editor.preview_count", ne.PreviewCount),
			logx.Int("editor.emit_log_rate_per_sec", ne.EmitLogRatePerSec),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

type storageKey struct {
	driver, path, busy string
}

// storageView treats a nil section as driver "none".
func storageView(s *StorageConfig) storageKey {
	if s == nil {
		return storageKey{driver: "none"}
	}
	k := storageKey{
		driver: strings.ToLower(strings.TrimSpace(s.Driver)),
		path:   strings.TrimSpace(s.Path),
		busy:   strings.TrimSpace(s.BusyTimeout),
	}
	if k.driver == "" {
		k.driver = "none"
	}
	return k
}
