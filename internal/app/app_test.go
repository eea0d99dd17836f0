package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "go.yaml.in/yaml/v3"

	"runtrigger/internal/config"
	"runtrigger/internal/eventbus"
	"runtrigger/internal/form"
	"runtrigger/internal/runedit"
	"runtrigger/internal/storage"
	"runtrigger/internal/trigger"
)

var testNow = time.Date(2024, 6, 3, 8, 0, 0, 0, time.Local) // Monday

func newTestApp(t *testing.T, driver string) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store")
	if driver == "sqlite" {
		storePath = filepath.Join(dir, "runs.db")
	}
	cfg := "logging:\n  level: error\n  console: true\n" +
		"storage:\n  driver: " + driver + "\n  path: " + storePath + "\n" +
		"editor:\n  preview_count: 3\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	var out bytes.Buffer
	a, err := New(Options{ConfigPath: path, Out: &out, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, &out
}

func TestNewRunAndList(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			a, out := newTestApp(t, driver)
			ctx := context.Background()

			run, err := a.NewRun(ctx, "nightly")
			require.NoError(t, err)
			assert.Equal(t, run.ID+"\n", out.String())

			out.Reset()
			require.NoError(t, a.List(ctx))
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			require.Len(t, lines, 2)
			assert.Contains(t, lines[0], "SCHEDULE")
			assert.Contains(t, lines[1], run.ID)
			assert.Contains(t, lines[1], "every minute")
			assert.Contains(t, lines[1], "ok")
		})
	}
}

func TestNewRunRequiresName(t *testing.T) {
	a, _ := newTestApp(t, "file")
	_, err := a.NewRun(context.Background(), "  ")
	assert.EqualError(t, err, "Run name is required")
}

func TestEditCronWeekdays(t *testing.T) {
	a, out := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "weekly")
	require.NoError(t, err)

	out.Reset()
	saved, err := a.Edit(ctx, run.ID, []string{
		"kind=cron", "unit=week", "start=on", "start-date=2024-06-03", "start-time=09:30",
		"all-days", "day=mon", "day=2", "max=4", "catchup=off", "description=weekly report",
	})
	require.NoError(t, err)
	require.NotNil(t, saved.Trigger.CronSchedule)
	assert.Equal(t, "30 9 * * 1,2 ?", saved.Trigger.CronSchedule.Cron)
	assert.Equal(t, "4", saved.MaxConcurrency)
	assert.True(t, saved.NoCatchup)
	assert.Equal(t, "weekly report", saved.Description)
	assert.Contains(t, out.String(), "cron 30 9 * * 1,2 ?")
	// description is not a trigger field
	assert.Contains(t, out.String(), "(10 trigger changes)")
}

func TestEditManualCron(t *testing.T) {
	a, out := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "manual")
	require.NoError(t, err)

	out.Reset()
	saved, err := a.Edit(ctx, run.ID, []string{"kind=cron", "manual-cron=on", "cron=0 5 * * 1,2 ?"})
	require.NoError(t, err)
	assert.Equal(t, "0 5 * * 1,2 ?", saved.Trigger.CronSchedule.Cron)
	assert.Equal(t, "saved "+run.ID+": cron 0 5 * * 1,2 ? (3 trigger changes)\n", out.String())

	// A stored cron reopens in manual mode, so weekday toggles are locked.
	_, err = a.Edit(ctx, run.ID, []string{"day=3"})
	assert.ErrorIs(t, err, ErrFieldLocked)
}

func TestEditRefusesInvalid(t *testing.T) {
	a, _ := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "x")
	require.NoError(t, err)

	_, err = a.Edit(ctx, run.ID, []string{"max=11"})
	assert.ErrorIs(t, err, trigger.ErrConcurrencyOutOfRange)

	_, err = a.Edit(ctx, run.ID, []string{"kind=cron", "unit=week", "all-days"})
	assert.ErrorIs(t, err, trigger.ErrInvalidCronSchedule)

	_, err = a.Edit(ctx, run.ID, []string{"name="})
	assert.ErrorIs(t, err, runedit.ErrNameRequired)

	// 2^50 weeks does not fit in int64 seconds
	_, err = a.Edit(ctx, run.ID, []string{"unit=week", "every=1125899906842624"})
	assert.ErrorIs(t, err, trigger.ErrMissingTrigger)

	got, err := a.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", got.MaxConcurrency)
	assert.NotNil(t, got.Trigger.PeriodicSchedule)
}

func TestEditIntervaled(t *testing.T) {
	a, _ := newTestApp(t, "sqlite")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "poll")
	require.NoError(t, err)

	saved, err := a.Edit(ctx, run.ID, []string{"unit=hours", "every=6", "end=on", "end-date=2024-07-01", "end-time=00:00"})
	require.NoError(t, err)
	ps := saved.Trigger.PeriodicSchedule
	require.NotNil(t, ps)
	assert.Equal(t, "21600", ps.IntervalSecond)
	assert.Nil(t, ps.StartTime)
	require.NotNil(t, ps.EndTime)
	assert.True(t, ps.EndTime.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, "every 6 hours", describeSchedule(saved.Trigger))
}

func TestValidateCommand(t *testing.T) {
	a, out := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "x")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, a.Validate(ctx, run.ID))
	assert.Equal(t, "ok\n", out.String())

	// Write an invalid record behind the session's back.
	bad := run
	bad.MaxConcurrency = "0"
	_, err = a.store.PutRun(ctx, bad)
	require.NoError(t, err)

	out.Reset()
	err = a.Validate(ctx, run.ID)
	assert.ErrorIs(t, err, trigger.ErrConcurrencyOutOfRange)
	assert.Equal(t, "Maximum concurrent runs must be in range [1, 10]\n", out.String())

	assert.ErrorIs(t, a.Validate(ctx, "missing"), storage.ErrNotFound)
}

func TestShowFormats(t *testing.T) {
	a, out := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "daily")
	require.NoError(t, err)
	_, err = a.Edit(ctx, run.ID, []string{"kind=cron", "unit=day", "start=on", "start-date=2024-06-01", "start-time=07:15"})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, a.Show(ctx, run.ID, "json"))
	var v struct {
		ID       string          `json:"id"`
		Valid    bool            `json:"valid"`
		Trigger  trigger.Trigger `json:"trigger"`
		NextRuns []time.Time     `json:"next_runs"`
		History  []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, run.ID, v.ID)
	assert.True(t, v.Valid)
	assert.Equal(t, "15 7 * * * ?", v.Trigger.CronSchedule.Cron)
	require.Len(t, v.NextRuns, 3)
	assert.True(t, v.NextRuns[0].Equal(time.Date(2024, 6, 4, 7, 15, 0, 0, time.Local)))
	assert.Len(t, v.History, 2)

	out.Reset()
	require.NoError(t, a.Show(ctx, run.ID, "yaml"))
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &y))
	assert.Equal(t, run.ID, y["id"])
	assert.Equal(t, true, y["valid"])

	out.Reset()
	require.NoError(t, a.Show(ctx, run.ID, ""))
	text := out.String()
	assert.Contains(t, text, "Schedule:    cron 15 7 * * * ?")
	assert.Contains(t, text, "Next runs:")
	assert.Contains(t, text, "from now")
	assert.Contains(t, text, "Status:      ok")

	assert.Error(t, a.Show(ctx, run.ID, "xml"))
}

func TestShowSecondsFirstCron(t *testing.T) {
	a, out := newTestApp(t, "file")
	ctx := context.Background()
	run, err := a.NewRun(ctx, "quartz")
	require.NoError(t, err)

	run.Trigger = &trigger.Trigger{CronSchedule: &trigger.CronSchedule{Cron: "0 5 10 ? * 1,2"}}
	_, err = a.store.PutRun(ctx, run)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, a.Show(ctx, run.ID, "json"))
	var v struct {
		Valid    bool        `json:"valid"`
		NextRuns []time.Time `json:"next_runs"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.True(t, v.Valid)
	require.Len(t, v.NextRuns, 3)
	assert.True(t, v.NextRuns[0].Equal(time.Date(2024, 6, 3, 10, 5, 0, 0, time.Local)))
}

func TestStorageDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"error"},"storage":{"driver":"none"}}`), 0o644))
	a, err := New(Options{ConfigPath: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewRun(context.Background(), "x")
	assert.ErrorIs(t, err, storage.ErrDisabled)
	assert.ErrorIs(t, a.List(context.Background()), storage.ErrDisabled)
}

func TestApplyConfigUpdatesEditor(t *testing.T) {
	a, _ := newTestApp(t, "file")
	events, unsub := a.bus.Subscribe(1, EventConfigReloaded)
	defer unsub()

	oldCfg := a.cfgm.Get()
	next := *oldCfg
	next.Editor.PreviewCount = 7
	a.applyConfig(context.Background(), oldCfg, &next)

	assert.Equal(t, 7, a.editorSettings().PreviewCount)
	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, []string{"editor"}, ev.Data)
}

func TestLogEditTrail(t *testing.T) {
	a, _ := newTestApp(t, "file")
	ch := make(chan eventbus.Event, 4)
	ch <- eventbus.Event{Type: form.EventChanged, Data: form.Change{}}
	ch <- eventbus.Event{Type: form.EventChanged, Data: form.Change{Trigger: &trigger.Trigger{PeriodicSchedule: &trigger.PeriodicSchedule{IntervalSecond: "60"}}}}
	ch <- eventbus.Event{Type: runedit.EventSaved, Data: storage.RecurringRun{ID: "r1"}}

	assert.Equal(t, 2, a.logEditTrail(ch))
	assert.Empty(t, ch)
	assert.Zero(t, a.logEditTrail(ch))
}

func TestDrainLatest(t *testing.T) {
	ch := make(chan *config.Config, 3)
	a, b := &config.Config{}, &config.Config{}
	ch <- a
	ch <- b
	got := drainLatest(ch, &config.Config{})
	assert.Same(t, b, got)
	assert.Empty(t, ch)
}

func TestMapStorageConfig(t *testing.T) {
	_, ok, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	assert.False(t, ok)

	sc, ok, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "x.db"}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, config.DefaultBusyTimeout, sc.BusyTimeout)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}})
	assert.Error(t, err)
	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "redis"}})
	assert.Error(t, err)

	lc := mapLogConfig(&config.Config{Logging: config.LoggingConfig{Level: "warn", Format: "json", File: config.LoggingFile{Enabled: true, Path: "x.log"}}})
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "warn", lc.Level)
	assert.True(t, lc.File.Enabled)
}
