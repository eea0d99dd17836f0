package storage

import (
	"errors"
	"time"

	"runtrigger/internal/trigger"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("recurring run not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": snapshot + jsonl journal next to Path
//   - "sqlite": SQLite database file (modernc, pure Go)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RecurringRun is the persisted record a trigger belongs to.
//
// MaxConcurrency keeps the textual form the editor works with; it is only
// meaningful once the trigger validator has accepted it.
type RecurringRun struct {
	ID             string           `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	Description    string           `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger        *trigger.Trigger `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	MaxConcurrency string           `json:"max_concurrency" yaml:"max_concurrency"`
	NoCatchup      bool             `json:"no_catchup" yaml:"no_catchup"`
	Enabled        bool             `json:"enabled" yaml:"enabled"`
	CreatedAt      time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy so callers never share a Trigger with the store.
func (r RecurringRun) Clone() RecurringRun {
	r.Trigger = r.Trigger.Clone()
	return r
}

// AuditEntry records an edit-session action against a run.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at" yaml:"at"`
	RunID    string    `json:"run_id" yaml:"run_id"`
	Action   string    `json:"action" yaml:"action"`
	OK       bool      `json:"ok" yaml:"ok"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	MetaJSON string    `json:"meta,omitempty" yaml:"meta,omitempty"`
}
