package form

import (
	"time"

	"runtrigger/internal/eventbus"
	logx "runtrigger/pkg/logx"
)

// EventChanged is published on the bus with a Change as Data.
const EventChanged = "form.changed"

// Form owns a State for one edit session. It is not safe for concurrent use;
// the session that created it is its only writer.
type Form struct {
	state State
	last  Change

	onChange  func(Change)
	bus       eventbus.Bus
	log       logx.Logger
	now       func() time.Time
	endOffset time.Duration
}

type Option func(*Form)

// WithOnChange registers the owner's callback. It runs synchronously inside Apply.
func WithOnChange(fn func(Change)) Option {
	return func(f *Form) { f.onChange = fn }
}

func WithBus(bus eventbus.Bus) Option {
	return func(f *Form) { f.bus = bus }
}

func WithLogger(log logx.Logger) Option {
	return func(f *Form) { f.log = log }
}

// WithClock overrides the clock used for default bounds.
func WithClock(now func() time.Time) Option {
	return func(f *Form) { f.now = now }
}

func WithEndOffset(d time.Duration) Option {
	return func(f *Form) { f.endOffset = d }
}

// New seeds a form. Nothing is emitted until the first edit.
func New(seed Seed, opts ...Option) *Form {
	f := &Form{now: time.Now}
	for _, o := range opts {
		o(f)
	}
	if f.log.IsZero() {
		f.log = logx.Nop()
	}
	f.state = NewState(seed, f.now(), f.endOffset)
	f.last = Derive(f.state)
	f.log.Debug("form seeded",
		logx.String("kind", f.state.Kind.String()),
		logx.String("unit", f.state.Unit.String()),
		logx.String("cron_mode", f.state.CronMode.String()),
	)
	return f
}

// Apply runs one edit through the reducer and emits the resulting Change.
// It returns false, without emitting, when the edited field is locked in the
// current mode.
func (f *Form) Apply(e Edit) bool {
	next, ok := Reduce(f.state, e)
	if !ok {
		if e != nil {
			f.log.Debug("edit ignored; field locked",
				logx.String("field", e.Field().String()),
				logx.String("kind", f.state.Kind.String()),
				logx.String("cron_mode", f.state.CronMode.String()),
			)
		}
		return false
	}
	f.state = next
	f.last = Derive(next)
	f.emit(f.last)
	return true
}

func (f *Form) emit(c Change) {
	if f.onChange != nil {
		f.onChange(c)
	}
	if f.bus != nil {
		f.bus.Publish(eventbus.Event{Type: EventChanged, Data: c})
	}
}

func (f *Form) State() State   { return f.state }
func (f *Form) Change() Change { return f.last }
func (f *Form) Flags() Flags   { return Check(f.state) }
