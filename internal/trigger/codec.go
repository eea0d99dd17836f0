package trigger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// CronFieldCount is the number of fields in this system's cron dialect.
const CronFieldCount = 6

// index of the day-of-week field in a dialect cron string
const cronDowField = 4

// PickerStrings splits t into a date string and a time string on the local calendar.
func PickerStrings(t time.Time) (date, clock string) {
	return pickerStringsIn(t, time.Local)
}

// PickerTime joins a date and time string into a local point in time.
// It returns nil when enabled is false, whatever the text says.
//
// Wall-clock text is ambiguous inside a DST fall-back hour; it resolves to the
// first occurrence, so a time picked in the repeated hour reads back one hour early.
func PickerTime(enabled bool, date, clock string) (*time.Time, error) {
	return pickerTimeIn(enabled, date, clock, time.Local)
}

func pickerStringsIn(t time.Time, loc *time.Location) (date, clock string) {
	lt := t.In(loc)
	return lt.Format(DateLayout), lt.Format(TimeLayout)
}

func pickerTimeIn(enabled bool, date, clock string, loc *time.Location) (*time.Time, error) {
	if !enabled {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IntervalUnit picks the coarsest unit that divides seconds evenly.
// Seconds that are not a whole number of minutes fall back to MINUTE, rounded
// to the nearest minute and never below 1.
func IntervalUnit(seconds int64) (Interval, int64) {
	if seconds <= 0 {
		return Minute, 1
	}
	for _, unit := range intervalsDesc {
		if seconds%unit.Seconds() == 0 {
			return unit, seconds / unit.Seconds()
		}
	}
	n := (seconds + 30) / 60
	if n < 1 {
		n = 1
	}
	return Minute, n
}

func IntervalSeconds(unit Interval, magnitude int64) int64 {
	return magnitude * unit.Seconds()
}

// MagnitudeInRange reports whether magnitude units is a positive interval that
// fits in int64 seconds.
func MagnitudeInRange(unit Interval, magnitude int64) bool {
	return magnitude >= 1 && magnitude <= math.MaxInt64/unit.Seconds()
}

// BuildCron derives a dialect cron string from a start time, unit and weekday selection.
//
// Minute and hour come from start (midnight when start is nil). Day-of-week lists the
// selected days for WEEK and is "*" otherwise; an empty selection leaves the field empty,
// which EnsureRecurringRunParamsAreValid rejects.
func BuildCron(start *time.Time, unit Interval, days Weekdays) string {
	minute, hour := 0, 0
	if start != nil {
		lt := start.In(time.Local)
		minute, hour = lt.Minute(), lt.Hour()
	}
	dow := "*"
	if unit == Week {
		idx := days.Indices()
		parts := make([]string, len(idx))
		for i, d := range idx {
			parts[i] = strconv.Itoa(d)
		}
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d * * %s ?", minute, hour, dow)
}

// CronFields splits a dialect cron string on single spaces, keeping empty fields.
func CronFields(cron string) []string {
	s := strings.TrimSpace(cron)
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}

// ParseWeekdays resolves a day-of-week field into a selection.
//
// Supported tokens: "*" and "?" (every day), integers 0..6, ranges "a-b",
// separated by commas. An empty field yields an empty selection.
func ParseWeekdays(field string) (Weekdays, error) {
	var w Weekdays
	field = strings.TrimSpace(field)
	if field == "" {
		return w, nil
	}
	if field == "*" || field == "?" {
		return AllWeekdays(), nil
	}
	for _, tok := range strings.Split(field, ",") {
		tok = strings.TrimSpace(tok)
		lo, hi, isRange := strings.Cut(tok, "-")
		from, err := parseDay(lo)
		if err != nil {
			return Weekdays{}, err
		}
		to := from
		if isRange {
			if to, err = parseDay(hi); err != nil {
				return Weekdays{}, err
			}
			if to < from {
				return Weekdays{}, fmt.Errorf("invalid weekday range %q", tok)
			}
		}
		for d := from; d <= to; d++ {
			w[d] = true
		}
	}
	return w, nil
}

func parseDay(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid weekday %q (want 0..6)", s)
	}
	return n, nil
}

// cronWeekdays extracts the day-of-week selection from a dialect cron string.
func cronWeekdays(cron string) (Weekdays, error) {
	fields := CronFields(cron)
	if len(fields) != CronFieldCount {
		return Weekdays{}, fmt.Errorf("cron %q: want %d fields, got %d", cron, CronFieldCount, len(fields))
	}
	return ParseWeekdays(fields[cronDowField])
}

// CronWeekdays reports the explicit weekday list of a dialect cron string.
// ok is false when the field is a wildcard or the string does not parse.
func CronWeekdays(cron string) (days Weekdays, ok bool) {
	fields := CronFields(cron)
	if len(fields) != CronFieldCount {
		return Weekdays{}, false
	}
	f := strings.TrimSpace(fields[cronDowField])
	if f == "*" || f == "?" {
		return Weekdays{}, false
	}
	w, err := ParseWeekdays(f)
	if err != nil || !w.Any() {
		return Weekdays{}, false
	}
	return w, true
}
