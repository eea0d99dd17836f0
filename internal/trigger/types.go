package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind selects which encoding Build produces.
type Kind int

const (
	KindIntervaled Kind = iota
	KindCron
)

func (k Kind) String() string {
	switch k {
	case KindCron:
		return "cron"
	case KindIntervaled:
		return "intervaled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "cron" and "intervaled" (also "interval", "periodic").
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cron":
		return KindCron, nil
	case "intervaled", "interval", "periodic":
		return KindIntervaled, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind %q (use cron or intervaled)", raw)
	}
}

// Interval is a display unit for periodic schedules.
type Interval int

const (
	Minute Interval = iota
	Hour
	Day
	Week
)

// coarsest first; IntervalUnit relies on this order.
var intervalsDesc = [...]Interval{Week, Day, Hour, Minute}

// Seconds is the unit's duration in seconds.
func (i Interval) Seconds() int64 {
	switch i {
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 604800
	default:
		return 60
	}
}

func (i Interval) String() string {
	switch i {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	default:
		return fmt.Sprintf("interval(%d)", int(i))
	}
}

func ParseInterval(raw string) (Interval, error) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s")
	switch s {
	case "minute", "min", "m":
		return Minute, nil
	case "hour", "h":
		return Hour, nil
	case "day", "d":
		return Day, nil
	case "week", "w":
		return Week, nil
	default:
		return 0, fmt.Errorf("unknown interval %q (use minute, hour, day or week)", raw)
	}
}

// Weekdays is a selection indexed Sunday(0)..Saturday(6).
type Weekdays [7]bool

func AllWeekdays() Weekdays {
	return Weekdays{true, true, true, true, true, true, true}
}

func (w Weekdays) All() bool {
	for _, on := range w {
		if !on {
			return false
		}
	}
	return true
}

func (w Weekdays) Any() bool {
	for _, on := range w {
		if on {
			return true
		}
	}
	return false
}

// Indices returns the selected days in ascending order.
func (w Weekdays) Indices() []int {
	out := make([]int, 0, len(w))
	for i, on := range w {
		if on {
			out = append(out, i)
		}
	}
	return out
}

var weekdayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekday accepts an index 0..6 (0 = Sunday) or a day name such as "mon"
// or "Monday".
func ParseWeekday(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0..6", n)
		}
		return n, nil
	}
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if strings.HasPrefix(s, name) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// Toggle flips one day. Out-of-range indices are ignored.
func (w Weekdays) Toggle(day int) Weekdays {
	if day >= 0 && day < len(w) {
		w[day] = !w[day]
	}
	return w
}

// CronSchedule fires on a cron expression within optional bounds.
type CronSchedule struct {
	Cron      string     `json:"cron"`
	StartTime *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// PeriodicSchedule fires every IntervalSecond seconds within optional bounds.
// IntervalSecond is a decimal integer string on the wire.
type PeriodicSchedule struct {
	IntervalSecond string     `json:"interval_second" yaml:"interval_second"`
	StartTime      *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// Trigger carries exactly one of CronSchedule or PeriodicSchedule.
type Trigger struct {
	CronSchedule     *CronSchedule     `json:"cron_schedule,omitempty" yaml:"cron_schedule,omitempty"`
	PeriodicSchedule *PeriodicSchedule `json:"periodic_schedule,omitempty" yaml:"periodic_schedule,omitempty"`
}

var (
	errBothSchedules = errors.New("trigger: cron_schedule and periodic_schedule are mutually exclusive")
	errNoSchedule    = errors.New("trigger: one of cron_schedule or periodic_schedule is required")
)

// UnmarshalJSON rejects records that carry both schedules or neither.
// A JSON null leaves t untouched.
func (t *Trigger) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	type plain Trigger
	var p plain
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	if p.CronSchedule != nil && p.PeriodicSchedule != nil {
		return errBothSchedules
	}
	if p.CronSchedule == nil && p.PeriodicSchedule == nil {
		return errNoSchedule
	}
	*t = Trigger(p)
	return nil
}

// Kind reports which encoding t carries.
func (t *Trigger) Kind() Kind {
	if t != nil && t.CronSchedule != nil {
		return KindCron
	}
	return KindIntervaled
}

// Bounds returns the start/end of whichever schedule is set.
func (t *Trigger) Bounds() (start, end *time.Time) {
	switch {
	case t == nil:
		return nil, nil
	case t.CronSchedule != nil:
		return t.CronSchedule.StartTime, t.CronSchedule.EndTime
	case t.PeriodicSchedule != nil:
		return t.PeriodicSchedule.StartTime, t.PeriodicSchedule.EndTime
	}
	return nil, nil
}

// Clone returns a deep copy of t.
func (t *Trigger) Clone() *Trigger {
	if t == nil {
		return nil
	}
	out := &Trigger{}
	if c := t.CronSchedule; c != nil {
		out.CronSchedule = &CronSchedule{Cron: c.Cron, StartTime: cloneTime(c.StartTime), EndTime: cloneTime(c.EndTime)}
	}
	if p := t.PeriodicSchedule; p != nil {
		out.PeriodicSchedule = &PeriodicSchedule{IntervalSecond: p.IntervalSecond, StartTime: cloneTime(p.StartTime), EndTime: cloneTime(p.EndTime)}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
