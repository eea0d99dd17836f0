package form

import (
	"strconv"
	"strings"
	"time"

	"runtrigger/internal/trigger"
)

// DefaultMaxConcurrentRuns seeds the concurrency field when the run has none.
const DefaultMaxConcurrentRuns = "10"

// DefaultEndOffset places the initial end bound one week after the start bound.
const DefaultEndOffset = 7 * 24 * time.Hour

// CronMode says where the cron text comes from.
type CronMode int

const (
	// CronDerived recomputes the cron text from unit, weekdays and start on every edit.
	CronDerived CronMode = iota
	// CronManual keeps whatever the user typed; unit and weekdays are frozen.
	CronManual
)

func (m CronMode) String() string {
	if m == CronManual {
		return "manual"
	}
	return "derived"
}

// Bounds is the start/end part of the form. The date/time text is kept even while
// the corresponding Has flag is off, it just isn't part of the produced trigger.
type Bounds struct {
	HasStart  bool
	StartDate string
	StartTime string
	HasEnd    bool
	EndDate   string
	EndTime   string
}

// State is everything the trigger form lets a user edit.
type State struct {
	Kind      trigger.Kind
	Unit      trigger.Interval
	Magnitude int64
	Bounds    Bounds
	Weekdays  trigger.Weekdays
	Cron      string
	CronMode  CronMode

	MaxConcurrentRuns string
	Catchup           bool
}

// Seed is what the owning page hands the form when it opens.
type Seed struct {
	Trigger           *trigger.Trigger
	MaxConcurrentRuns string
	Catchup           *bool
}

// Field names an editable part of the form.
type Field int

const (
	FieldKind Field = iota
	FieldUnit
	FieldMagnitude
	FieldStart
	FieldEnd
	FieldWeekdays
	FieldManualCron
	FieldCron
	FieldMaxConcurrentRuns
	FieldCatchup
)

var fieldNames = [...]string{
	FieldKind:              "kind",
	FieldUnit:              "unit",
	FieldMagnitude:         "magnitude",
	FieldStart:             "start",
	FieldEnd:               "end",
	FieldWeekdays:          "weekdays",
	FieldManualCron:        "manual_cron",
	FieldCron:              "cron",
	FieldMaxConcurrentRuns: "max_concurrent_runs",
	FieldCatchup:           "catchup",
}

func (f Field) String() string {
	if f >= 0 && int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "field(" + strconv.Itoa(int(f)) + ")"
}

// NewState seeds a form from an existing run. now anchors the default bounds and
// endOffset places the default end after the start (DefaultEndOffset when <= 0).
//
// An incoming cron schedule opens in CronManual so its text is kept verbatim; an
// explicit weekday list in it selects the WEEK unit and those days.
func NewState(seed Seed, now time.Time, endOffset time.Duration) State {
	if endOffset <= 0 {
		endOffset = DefaultEndOffset
	}
	s := State{
		Kind:              trigger.KindIntervaled,
		Unit:              trigger.Minute,
		Magnitude:         1,
		Weekdays:          trigger.AllWeekdays(),
		CronMode:          CronDerived,
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		Catchup:           true,
	}

	start, end := seed.Trigger.Bounds()
	startAt := now
	if start != nil {
		startAt = *start
	}
	endAt := startAt.Add(endOffset)
	if end != nil {
		endAt = *end
	}
	s.Bounds.HasStart = start != nil
	s.Bounds.StartDate, s.Bounds.StartTime = trigger.PickerStrings(startAt)
	s.Bounds.HasEnd = end != nil
	s.Bounds.EndDate, s.Bounds.EndTime = trigger.PickerStrings(endAt)

	if seed.Trigger != nil {
		if ps := seed.Trigger.PeriodicSchedule; ps != nil {
			if secs, err := strconv.ParseInt(strings.TrimSpace(ps.IntervalSecond), 10, 64); err == nil && secs > 0 {
				s.Unit, s.Magnitude = trigger.IntervalUnit(secs)
			}
		}
		if cs := seed.Trigger.CronSchedule; cs != nil {
			s.Kind = trigger.KindCron
			if strings.TrimSpace(cs.Cron) != "" {
				s.Cron = cs.Cron
				s.CronMode = CronManual
				if days, ok := trigger.CronWeekdays(cs.Cron); ok {
					s.Unit = trigger.Week
					s.Weekdays = days
				}
			}
		}
	}

	if v := strings.TrimSpace(seed.MaxConcurrentRuns); v != "" {
		s.MaxConcurrentRuns = v
	}
	if seed.Catchup != nil {
		s.Catchup = *seed.Catchup
	}
	if s.CronMode == CronDerived {
		s.Cron = trigger.BuildCron(start, s.Unit, s.Weekdays)
	}
	return s
}

// Editable reports whether f accepts edits in the current kind and cron mode.
func (s State) Editable(f Field) bool {
	cron := s.Kind == trigger.KindCron
	manual := s.CronMode == CronManual
	switch f {
	case FieldMagnitude:
		return !cron
	case FieldUnit:
		return !(cron && manual)
	case FieldWeekdays:
		return cron && !manual && s.Unit == trigger.Week
	case FieldManualCron:
		return cron
	case FieldCron:
		return cron && manual
	case FieldKind, FieldStart, FieldEnd, FieldMaxConcurrentRuns, FieldCatchup:
		return true
	default:
		return false
	}
}

// Start returns the start bound, nil when disabled.
func (s State) Start() (*time.Time, error) {
	return trigger.PickerTime(s.Bounds.HasStart, s.Bounds.StartDate, s.Bounds.StartTime)
}

// End returns the end bound, nil when disabled.
func (s State) End() (*time.Time, error) {
	return trigger.PickerTime(s.Bounds.HasEnd, s.Bounds.EndDate, s.Bounds.EndTime)
}

// refresh is the derived-cron step of every transition.
func (s *State) refresh() {
	if s.Kind != trigger.KindCron || s.CronMode != CronDerived {
		return
	}
	start, err := s.Start()
	if err != nil {
		// keep the last good cron until the start text parses again
		return
	}
	s.Cron = trigger.BuildCron(start, s.Unit, s.Weekdays)
}
