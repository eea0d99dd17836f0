package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./runs.db
  busy_timeout: 2s
editor:
  default_end_offset: 48h
  preview_count: 3
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, sampleYAML)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	s, err := cfg.Editor.Settings()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, s.DefaultEndOffset)
	assert.Equal(t, 3, s.PreviewCount)
	assert.Equal(t, DefaultEmitLogRatePerSec, s.EmitLogRatePerSec)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging":{"level":"info"},"telegram":{}}`)
	_, err := NewConfigManager(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestLoadRejectsTrailingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{} {}`)
	_, err := NewConfigManager(path).Load()
	require.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, true},
		{"bad driver", Config{Storage: &StorageConfig{Driver: "redis"}}, false},
		{"bad busy timeout", Config{Storage: &StorageConfig{Driver: "sqlite", BusyTimeout: "soon"}}, false},
		{"negative offset", Config{Editor: EditorConfig{DefaultEndOffset: "-1h"}}, false},
		{"bad level", Config{Logging: LoggingConfig{Level: "loud"}}, false},
		{"json format", Config{Logging: LoggingConfig{Format: "JSON"}}, true},
		{"bad format", Config{Logging: LoggingConfig{Format: "xml"}}, false},
		{"sqlite3 alias", Config{Storage: &StorageConfig{Driver: "sqlite3", Path: "x.db"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
	assert.ErrorIs(t, Validate(&Config{Storage: &StorageConfig{Driver: "redis"}}), ErrUnknownDriver)
}

func TestEditorSettingsDefaults(t *testing.T) {
	s, err := EditorConfig{}.Settings()
	require.NoError(t, err)
	assert.Equal(t, EditorSettings{
		DefaultEndOffset:  DefaultEndOffset,
		PreviewCount:      DefaultPreviewCount,
		EmitLogRatePerSec: DefaultEmitLogRatePerSec,
	}, s)
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDurationOrDefault("x", "90s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationOrDefault("x", "later", time.Minute)
	assert.ErrorContains(t, err, "x: invalid duration")
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Editor.PreviewCount = 9
	for _, name := range []string{"c.json", "c.yaml"} {
		b, err := Encode(name, cfg)
		require.NoError(t, err)
		got, err := Decode(name, b)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, got, name)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := Default()
	newCfg := Default()
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	assert.Empty(t, changed)

	newCfg.Logging.Level = "debug"
	newCfg.Storage = nil
	newCfg.Editor.PreviewCount = 8
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"editor", "logging", "storage"}, changed)
	assert.NotEmpty(t, attrs)

	// Explicit default equals omitted.
	a := &Config{Editor: EditorConfig{PreviewCount: DefaultPreviewCount}}
	changed, _ = SummarizeConfigChange(&Config{}, a)
	assert.Empty(t, changed)

	b := Default()
	b.Logging.Format = "json"
	changed, _ = SummarizeConfigChange(Default(), b)
	assert.Equal(t, []string{"logging"}, changed)
}

func TestWatchPublishesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, path, "logging:\n  level: debug\n")

	select {
	case cfg := <-sub:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Same(t, cfg, m.Get())
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}

func TestWatchSkipsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	orig, err := m.Load()
	require.NoError(t, err)

	writeFile(t, path, `{"storage":{"driver":"redis"}}`)
	m.reload(context.Background())
	assert.Same(t, orig, m.Get())

	m.SetValidator(func(context.Context, *Config) error { return assert.AnError })
	writeFile(t, path, `{"logging":{"level":"warn"}}`)
	m.reload(context.Background())
	assert.Same(t, orig, m.Get())
}
