package storage

import (
	"context"
	"fmt"
	"strings"

	logx "runtrigger/pkg/logx"
)

// Store persists recurring runs and their audit trail.
type Store interface {
	GetRun(ctx context.Context, id string) (RecurringRun, error)
	// PutRun inserts or replaces r. CreatedAt is kept from the stored record
	// when present; UpdatedAt is always refreshed.
	PutRun(ctx context.Context, r RecurringRun) (RecurringRun, error)
	// ListRuns returns every run ordered by creation time, then ID.
	ListRuns(ctx context.Context) ([]RecurringRun, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns the audit trail of one run, oldest first.
	ListAudit(ctx context.Context, runID string) ([]AuditEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, ErrDisabled) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("driver", driver))

	switch driver {
	case "", "none":
		return nil, ErrDisabled
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
