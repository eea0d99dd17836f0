package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// the dialect's first five fields are standard crontab; the sixth is a placeholder
	dialectParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	// six fields without the placeholder are read seconds-first, e.g. "0 5 10 ? * 1,2"
	secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// NextRuns returns up to n fire times after from, clamped to the trigger's bounds.
// Cron schedules are evaluated on the local clock.
func NextRuns(t *Trigger, from time.Time, n int) ([]time.Time, error) {
	if t == nil {
		return nil, ErrMissingTrigger
	}
	if n <= 0 {
		return nil, nil
	}
	sched, err := Schedule(t)
	if err != nil {
		return nil, err
	}

	start, end := t.Bounds()
	cursor := from
	if start != nil && start.After(from) {
		cursor = start.Add(-time.Nanosecond)
	}

	out := make([]time.Time, 0, n)
	for len(out) < n {
		next := sched.Next(cursor)
		if next.IsZero() {
			break
		}
		if end != nil && next.After(*end) {
			break
		}
		out = append(out, next)
		cursor = next
	}
	return out, nil
}

// Schedule converts a trigger into a cron.Schedule.
//
// Cron triggers drop the trailing placeholder and parse the remaining five fields.
// When the sixth field is not a placeholder the string is parsed seconds-first.
// Periodic triggers repeat every interval_second, aligned to start_time when set.
func Schedule(t *Trigger) (cron.Schedule, error) {
	switch {
	case t == nil:
		return nil, ErrMissingTrigger
	case t.CronSchedule != nil:
		fields := CronFields(t.CronSchedule.Cron)
		if len(fields) != CronFieldCount {
			return nil, fmt.Errorf("%w: want %d fields, got %d", ErrInvalidCronSchedule, CronFieldCount, len(fields))
		}
		if last := fields[CronFieldCount-1]; last != "?" && last != "*" {
			s, err := secondsParser.Parse(strings.Join(fields, " "))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidCronSchedule, err)
			}
			return s, nil
		}
		s, err := dialectParser.Parse(strings.Join(fields[:CronFieldCount-1], " "))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCronSchedule, err)
		}
		return s, nil
	case t.PeriodicSchedule != nil:
		secs, err := strconv.ParseInt(strings.TrimSpace(t.PeriodicSchedule.IntervalSecond), 10, 64)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid interval_second %q", t.PeriodicSchedule.IntervalSecond)
		}
		every := time.Duration(secs) * time.Second
		if t.PeriodicSchedule.StartTime != nil {
			return alignedSchedule{anchor: *t.PeriodicSchedule.StartTime, every: every}, nil
		}
		return cron.ConstantDelaySchedule{Delay: every}, nil
	default:
		return nil, ErrMissingTrigger
	}
}

// alignedSchedule fires at anchor + k*every, k >= 0.
type alignedSchedule struct {
	anchor time.Time
	every  time.Duration
}

func (s alignedSchedule) Next(t time.Time) time.Time {
	if t.Before(s.anchor) {
		return s.anchor
	}
	k := t.Sub(s.anchor)/s.every + 1
	return s.anchor.Add(k * s.every)
}
