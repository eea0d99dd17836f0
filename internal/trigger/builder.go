package trigger

import (
	"strconv"
	"strings"
	"time"
)

// Build assembles a trigger from form values.
//
// For KindCron the cron string is used verbatim. For KindIntervaled the interval is
// unit*magnitude seconds. Build returns nil when the chosen branch cannot produce a
// complete record: a blank cron string, or a magnitude below 1 or too large for the
// interval to fit in int64 seconds.
func Build(unit Interval, magnitude int64, start, end *time.Time, kind Kind, cron string) *Trigger {
	switch kind {
	case KindCron:
		if strings.TrimSpace(cron) == "" {
			return nil
		}
		return &Trigger{CronSchedule: &CronSchedule{
			Cron:      cron,
			StartTime: cloneTime(start),
			EndTime:   cloneTime(end),
		}}
	case KindIntervaled:
		if !MagnitudeInRange(unit, magnitude) {
			return nil
		}
		return &Trigger{PeriodicSchedule: &PeriodicSchedule{
			IntervalSecond: strconv.FormatInt(IntervalSeconds(unit, magnitude), 10),
			StartTime:      cloneTime(start),
			EndTime:        cloneTime(end),
		}}
	default:
		return nil
	}
}
