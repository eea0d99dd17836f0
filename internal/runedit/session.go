package runedit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"runtrigger/internal/eventbus"
	"runtrigger/internal/form"
	"runtrigger/internal/storage"
	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

var ErrNameRequired = errors.New("Run name is required")

// EventSaved is published on the bus after a successful Save, with the saved
// storage.RecurringRun as Data.
const EventSaved = "run.saved"

const auditActionSave = "save"

// Session edits one recurring run. It mirrors the form's emissions into a draft
// and keeps the latest validation error next to it.
//
// A Session is not safe for concurrent use.
type Session struct {
	store storage.Store
	run   storage.RecurringRun
	form  *form.Form

	name        string
	description string
	trig        *trigger.Trigger
	maxConc     string
	catchup     bool
	err         error

	log     logx.Logger
	bus     eventbus.Bus
	limiter *rate.Limiter
	now     func() time.Time
}

type options struct {
	log       logx.Logger
	bus       eventbus.Bus
	now       func() time.Time
	endOffset time.Duration
	emitRate  int
}

type Option func(*options)

func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(o *options) { o.bus = bus } }

// WithClock overrides the clock for default bounds and new-run timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithEndOffset sets how far after the start the default end bound sits.
func WithEndOffset(d time.Duration) Option { return func(o *options) { o.endOffset = d } }

// WithEmitLogRate caps "trigger changed" debug lines per second.
func WithEmitLogRate(perSec int) Option { return func(o *options) { o.emitRate = perSec } }

// NewRun returns a fresh, enabled run with a generated ID and the default
// trigger a blank form describes.
func NewRun(name string, now time.Time) storage.RecurringRun {
	seed := form.Derive(form.NewState(form.Seed{}, now, 0))
	return storage.RecurringRun{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(name),
		Trigger:        seed.Trigger,
		MaxConcurrency: form.DefaultMaxConcurrentRuns,
		Enabled:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Open loads run id from store and starts a session on it.
func Open(ctx context.Context, store storage.Store, id string, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, storage.ErrDisabled
	}
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load recurring run %s: %w", id, err)
	}
	return Start(store, run, opts...), nil
}

// Start begins a session on an already loaded (or new) run.
func Start(store storage.Store, run storage.RecurringRun, opts ...Option) *Session {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	if o.emitRate <= 0 {
		o.emitRate = 2
	}

	s := &Session{
		store:       store,
		run:         run.Clone(),
		name:        run.Name,
		description: run.Description,
		trig:        run.Trigger.Clone(),
		maxConc:     run.MaxConcurrency,
		catchup:     !run.NoCatchup,
		log:         o.log.With(logx.String("run_id", run.ID)),
		bus:         o.bus,
		limiter:     rate.NewLimiter(rate.Limit(o.emitRate), 1),
		now:         o.now,
	}
	catchup := s.catchup
	s.form = form.New(form.Seed{
		Trigger:           run.Trigger,
		MaxConcurrentRuns: run.MaxConcurrency,
		Catchup:           &catchup,
	},
		form.WithOnChange(s.onChange),
		form.WithBus(o.bus),
		form.WithLogger(o.log),
		form.WithClock(o.now),
		form.WithEndOffset(o.endOffset),
	)
	s.validate()
	return s
}

func (s *Session) onChange(c form.Change) {
	s.trig = c.Trigger
	s.maxConc = ""
	if c.MaxConcurrentRuns != nil {
		s.maxConc = *c.MaxConcurrentRuns
	}
	s.catchup = c.Catchup
	s.validate()

	if s.limiter.Allow() {
		fields := []logx.Field{logx.Bool("valid", s.err == nil)}
		if s.trig != nil {
			fields = append(fields, logx.String("kind", s.trig.Kind().String()))
		}
		s.log.Debug("trigger changed", fields...)
	}
}

// Apply forwards one edit to the trigger form. It reports whether the form
// accepted it.
func (s *Session) Apply(e form.Edit) bool { return s.form.Apply(e) }

func (s *Session) SetName(name string) {
	s.name = name
	s.validate()
}

func (s *Session) SetDescription(desc string) {
	s.description = desc
	s.validate()
}

// Validate reports the first problem with the draft: a missing name, then
// whatever the trigger validator rejects.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.name) == "" {
		return ErrNameRequired
	}
	return trigger.EnsureRecurringRunParamsAreValid(s.trig, s.maxConc)
}

func (s *Session) validate() { s.err = s.Validate() }

// Err is the last validation result; nil means Save is allowed.
func (s *Session) Err() error { return s.err }

// ErrorMessage is Err as text, "" when valid.
func (s *Session) ErrorMessage() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

func (s *Session) Form() *form.Form { return s.form }

// Draft is the run Save would write.
func (s *Session) Draft() storage.RecurringRun {
	r := s.run.Clone()
	r.Name = s.name
	r.Description = s.description
	r.Trigger = s.trig.Clone()
	r.MaxConcurrency = s.maxConc
	r.NoCatchup = !s.catchup
	return r
}

type auditMeta struct {
	Kind           string `json:"kind,omitempty"`
	Cron           string `json:"cron,omitempty"`
	IntervalSecond string `json:"interval_second,omitempty"`
	MaxConcurrency string `json:"max_concurrency"`
	NoCatchup      bool   `json:"no_catchup"`
}

func metaFor(r storage.RecurringRun) string {
	m := auditMeta{MaxConcurrency: r.MaxConcurrency, NoCatchup: r.NoCatchup}
	if r.Trigger != nil {
		m.Kind = r.Trigger.Kind().String()
		if cs := r.Trigger.CronSchedule; cs != nil {
			m.Cron = cs.Cron
		}
		if ps := r.Trigger.PeriodicSchedule; ps != nil {
			m.IntervalSecond = ps.IntervalSecond
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// Save persists the draft and records an audit entry. It refuses while the
// draft is invalid.
func (s *Session) Save(ctx context.Context) (storage.RecurringRun, error) {
	if err := s.Validate(); err != nil {
		s.err = err
		return storage.RecurringRun{}, err
	}
	if s.store == nil {
		return storage.RecurringRun{}, storage.ErrDisabled
	}

	draft := s.Draft()
	saved, err := s.store.PutRun(ctx, draft)
	entry := storage.AuditEntry{
		At:       s.now(),
		RunID:    draft.ID,
		Action:   auditActionSave,
		OK:       err == nil,
		MetaJSON: metaFor(draft),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := s.store.AppendAudit(ctx, entry); aerr != nil {
		s.log.Warn("audit append failed", logx.Err(aerr))
	}
	if err != nil {
		s.log.Error("update failed", logx.Err(err))
		return storage.RecurringRun{}, fmt.Errorf("save recurring run %s: %w", draft.ID, err)
	}

	s.run = saved.Clone()
	s.log.Info("recurring run saved", logx.String("name", saved.Name))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventSaved, Data: saved.Clone()})
	}
	return saved, nil
}
