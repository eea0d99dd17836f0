package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; the CLI never needs more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log, now: time.Now}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const runColumns = `id, name, description, trigger_json, max_concurrency, no_catchup, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RecurringRun, error) {
	var (
		r                    RecurringRun
		desc, trig           sql.NullString
		noCatchup, enabled   int
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &desc, &trig, &r.MaxConcurrency, &noCatchup, &enabled, &createdAt, &updatedAt); err != nil {
		return RecurringRun{}, err
	}
	r.Description = desc.String
	r.NoCatchup = noCatchup != 0
	r.Enabled = enabled != 0
	if trig.Valid && trig.String != "" {
		var t trigger.Trigger
		if err := json.Unmarshal([]byte(trig.String), &t); err != nil {
			return RecurringRun{}, fmt.Errorf("run %s: decode trigger: %w", r.ID, err)
		}
		r.Trigger = &t
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return RecurringRun{}, fmt.Errorf("run %s: created_at: %w", r.ID, err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return RecurringRun{}, fmt.Errorf("run %s: updated_at: %w", r.ID, err)
	}
	return r, nil
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (RecurringRun, error) {
	if s == nil || s.db == nil {
		return RecurringRun{}, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, strings.TrimSpace(id))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RecurringRun{}, ErrNotFound
	}
	return r, err
}

func (s *sqliteStore) PutRun(ctx context.Context, r RecurringRun) (RecurringRun, error) {
	if s == nil || s.db == nil {
		return RecurringRun{}, ErrDisabled
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return RecurringRun{}, errors.New("recurring run id is required")
	}

	var trig any
	if r.Trigger != nil {
		b, err := json.Marshal(r.Trigger)
		if err != nil {
			return RecurringRun{}, err
		}
		trig = string(b)
	}

	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	// created_at is left untouched on conflict; read it back for the caller.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(`+runColumns+`) VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name,
		   description=excluded.description,
		   trigger_json=excluded.trigger_json,
		   max_concurrency=excluded.max_concurrency,
		   no_catchup=excluded.no_catchup,
		   enabled=excluded.enabled,
		   updated_at=excluded.updated_at`,
		r.ID, r.Name, nullStr(r.Description), trig, r.MaxConcurrency,
		boolInt(r.NoCatchup), boolInt(r.Enabled),
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RecurringRun{}, err
	}
	return s.GetRun(ctx, r.ID)
}

func (s *sqliteStore) ListRuns(ctx context.Context) ([]RecurringRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecurringRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Timestamps are text; order in Go so mixed offsets still sort correctly.
	sortRuns(out)
	return out, nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, action, ok, err, meta) VALUES(?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.RunID, e.Action, boolInt(e.OK), nullStr(e.Error), nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqliteStore) ListAudit(ctx context.Context, runID string) ([]AuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT at, run_id, action, ok, err, meta FROM audit WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			at      string
			ok      int
			errText sql.NullString
			meta    sql.NullString
		)
		if err := rows.Scan(&at, &e.RunID, &e.Action, &ok, &errText, &meta); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.OK = ok != 0
		e.Error = errText.String
		e.MetaJSON = meta.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
