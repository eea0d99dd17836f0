package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "runtrigger/pkg/logx"
)

// compactEvery is how many journal appends trigger a snapshot rewrite.
const compactEvery = 200

// fileStore keeps runs in memory and persists them as:
//   - <prefix>.audit.jsonl         (append-only JSON Lines)
//   - <prefix>.runs.snapshot.json  (full map, rewritten on compaction)
//   - <prefix>.runs.journal.jsonl  (append-only puts since the last snapshot)
type fileStore struct {
	log logx.Logger
	now func() time.Time

	mu sync.Mutex

	auditPath string
	auditFile *os.File

	snapshotPath string
	journalFile  *os.File
	runs         map[string]RecurringRun
	writes       int
}

type journalRecord struct {
	Op  string       `json:"op"`
	Run RecurringRun `json:"run"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".runs.snapshot.json"
	journalPath := prefix + ".runs.journal.jsonl"

	runs := map[string]RecurringRun{}
	if err := loadSnapshot(snapPath, runs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	replayed, err := replayJournal(journalPath, runs, log)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	auditPath := prefix + ".audit.jsonl"
	af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}

	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("runs", len(runs)), logx.Int("replayed", replayed))
	return &fileStore{
		log:          log,
		now:          time.Now,
		auditPath:    auditPath,
		auditFile:    af,
		snapshotPath: snapPath,
		journalFile:  jf,
		runs:         runs,
		writes:       replayed,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.journalFile != nil && s.writes > 0 {
		errs = append(errs, s.compactLocked())
	}
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	if s.journalFile != nil {
		errs = append(errs, s.journalFile.Close())
		s.journalFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) GetRun(ctx context.Context, id string) (RecurringRun, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[strings.TrimSpace(id)]
	if !ok {
		return RecurringRun{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *fileStore) PutRun(ctx context.Context, r RecurringRun) (RecurringRun, error) {
	_ = ctx
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return RecurringRun{}, errors.New("recurring run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return RecurringRun{}, errors.New("run journal closed")
	}

	now := s.now().UTC()
	if prev, ok := s.runs[r.ID]; ok && !prev.CreatedAt.IsZero() {
		r.CreatedAt = prev.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r = r.Clone()

	if err := json.NewEncoder(s.journalFile).Encode(journalRecord{Op: "put", Run: r}); err != nil {
		return RecurringRun{}, err
	}
	s.runs[r.ID] = r
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("run journal compact failed", logx.Err(err))
		}
	}
	return r.Clone(), nil
}

func (s *fileStore) ListRuns(ctx context.Context) ([]RecurringRun, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]RecurringRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Clone())
	}
	s.mu.Unlock()
	sortRuns(out)
	return out, nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) ListAudit(ctx context.Context, runID string) ([]AuditEntry, error) {
	_ = ctx
	// Hold the lock so a concurrent append is never read half-written.
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.auditPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.RunID != runID {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// compactLocked writes the full map to the snapshot and truncates the journal.
func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.runs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journalFile.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	s.writes = 0
	return nil
}

func loadSnapshot(path string, out map[string]RecurringRun) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]RecurringRun
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

// replayJournal applies journal records over out and returns how many applied.
// Torn or unreadable lines (e.g. a crash mid-append) are skipped.
func replayJournal(path string, out map[string]RecurringRun, log logx.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			log.Debug("skipping unreadable journal line", logx.Err(err))
			continue
		}
		if rec.Op != "put" || rec.Run.ID == "" {
			continue
		}
		out[rec.Run.ID] = rec.Run
		n++
	}
	return n, sc.Err()
}

func sortRuns(rs []RecurringRun) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
