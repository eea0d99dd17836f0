package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

func openDriver(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	return st
}

func drivers(t *testing.T) map[string]string {
	dir := t.TempDir()
	return map[string]string{
		"file":   filepath.Join(dir, "store"),
		"sqlite": filepath.Join(dir, "runs.db"),
	}
}

func sampleRun(id string) RecurringRun {
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return RecurringRun{
		ID:             id,
		Name:           "nightly " + id,
		Description:    "rebuild",
		Trigger:        trigger.Build(trigger.Day, 1, &start, nil, trigger.KindCron, "30 9 * * 1,2 ?"),
		MaxConcurrency: "3",
		NoCatchup:      true,
		Enabled:        true,
	}
}

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Logger{})
		assert.Nil(t, st)
		assert.ErrorIs(t, err, ErrDisabled)
	}
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for driver, path := range drivers(t) {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver, path)
			defer st.Close()

			_, err := st.GetRun(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			saved, err := st.PutRun(ctx, sampleRun("a"))
			require.NoError(t, err)
			assert.False(t, saved.CreatedAt.IsZero())
			assert.False(t, saved.UpdatedAt.IsZero())

			got, err := st.GetRun(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "nightly a", got.Name)
			assert.Equal(t, "rebuild", got.Description)
			assert.Equal(t, "3", got.MaxConcurrency)
			assert.True(t, got.NoCatchup)
			assert.True(t, got.Enabled)
			require.NotNil(t, got.Trigger)
			require.NotNil(t, got.Trigger.CronSchedule)
			assert.Equal(t, "30 9 * * 1,2 ?", got.Trigger.CronSchedule.Cron)
			require.NotNil(t, got.Trigger.CronSchedule.StartTime)
			assert.True(t, got.Trigger.CronSchedule.StartTime.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)))
			assert.Nil(t, got.Trigger.CronSchedule.EndTime)
		})
	}
}

func TestPutRunKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	for driver, path := range drivers(t) {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver, path)
			defer st.Close()

			first, err := st.PutRun(ctx, sampleRun("a"))
			require.NoError(t, err)

			upd := first
			upd.CreatedAt = time.Time{}
			upd.Name = "renamed"
			upd.Trigger = nil
			second, err := st.PutRun(ctx, upd)
			require.NoError(t, err)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
			assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
			assert.Equal(t, "renamed", second.Name)
			assert.Nil(t, second.Trigger)
		})
	}
}

func TestPutRunRequiresID(t *testing.T) {
	for driver, path := range drivers(t) {
		st := openDriver(t, driver, path)
		_, err := st.PutRun(context.Background(), RecurringRun{ID: "  "})
		assert.Error(t, err, driver)
		require.NoError(t, st.Close())
	}
}

func TestListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	for driver, path := range drivers(t) {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver, path)
			defer st.Close()

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, id := range []string{"c", "a", "b"} {
				r := sampleRun(id)
				r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
				_, err := st.PutRun(ctx, r)
				require.NoError(t, err)
			}
			rs, err := st.ListRuns(ctx)
			require.NoError(t, err)
			ids := make([]string, 0, len(rs))
			for _, r := range rs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, []string{"c", "a", "b"}, ids)
		})
	}
}

func TestAuditAppendAndList(t *testing.T) {
	ctx := context.Background()
	for driver, path := range drivers(t) {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver, path)
			defer st.Close()

			require.NoError(t, st.AppendAudit(ctx, AuditEntry{RunID: "a", Action: "save", OK: true, MetaJSON: `{"kind":"CRON"}`}))
			require.NoError(t, st.AppendAudit(ctx, AuditEntry{RunID: "b", Action: "save", OK: true}))
			require.NoError(t, st.AppendAudit(ctx, AuditEntry{RunID: "a", Action: "save", Error: "Cron schedule invalid"}))

			es, err := st.ListAudit(ctx, "a")
			require.NoError(t, err)
			require.Len(t, es, 2)
			assert.True(t, es[0].OK)
			assert.Equal(t, `{"kind":"CRON"}`, es[0].MetaJSON)
			assert.False(t, es[0].At.IsZero())
			assert.False(t, es[1].OK)
			assert.Equal(t, "Cron schedule invalid", es[1].Error)
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	for driver, path := range drivers(t) {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver, path)
			_, err := st.PutRun(ctx, sampleRun("a"))
			require.NoError(t, err)
			require.NoError(t, st.Close())

			st = openDriver(t, driver, path)
			defer st.Close()
			got, err := st.GetRun(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "nightly a", got.Name)
		})
	}
}

func TestFileStoreReplaysJournalAndSkipsTornLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")

	st := openDriver(t, "file", path)
	fs := st.(*fileStore)
	_, err := st.PutRun(ctx, sampleRun("a"))
	require.NoError(t, err)
	// Simulate a crash: close the files without compacting.
	require.NoError(t, fs.journalFile.Close())
	require.NoError(t, fs.auditFile.Close())

	f, err := os.OpenFile(path+".runs.journal.jsonl", os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"op":"put","run":{"id":"b"`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	st = openDriver(t, "file", path)
	defer st.Close()
	rs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "a", rs[0].ID)
}

func TestFileStoreCompacts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")
	st := openDriver(t, "file", path)
	for i := 0; i < compactEvery; i++ {
		_, err := st.PutRun(ctx, sampleRun("a"))
		require.NoError(t, err)
	}
	fi, err := os.Stat(path + ".runs.journal.jsonl")
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
	_, err = os.Stat(path + ".runs.snapshot.json")
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := openDriver(t, "file", filepath.Join(t.TempDir(), "store"))
	defer st.Close()

	_, err := st.PutRun(ctx, sampleRun("a"))
	require.NoError(t, err)
	got, err := st.GetRun(ctx, "a")
	require.NoError(t, err)
	got.Trigger.CronSchedule.Cron = "mutated"

	again, err := st.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "30 9 * * 1,2 ?", again.Trigger.CronSchedule.Cron)
}
