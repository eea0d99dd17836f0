package trigger

import (
	"errors"
	"strconv"
	"strings"
)

const (
	MinConcurrentRuns = 1
	MaxConcurrentRuns = 10
)

// Validation failures. The messages are shown to users verbatim.
var (
	ErrMissingTrigger        = errors.New("trigger undefined")
	ErrConcurrencyOutOfRange = errors.New("Maximum concurrent runs must be in range [1, 10]")
	ErrInvalidCronSchedule   = errors.New("Cron schedule invalid")
)

// EnsureRecurringRunParamsAreValid gates saving a recurring run. It returns one of
// ErrMissingTrigger, ErrConcurrencyOutOfRange or ErrInvalidCronSchedule, or nil.
func EnsureRecurringRunParamsAreValid(t *Trigger, maxConcurrentRuns string) error {
	if t == nil || (t.CronSchedule == nil && t.PeriodicSchedule == nil) {
		return ErrMissingTrigger
	}
	if !ConcurrencyInRange(maxConcurrentRuns) {
		return ErrConcurrencyOutOfRange
	}
	if t.CronSchedule != nil {
		days, err := cronWeekdays(t.CronSchedule.Cron)
		if err != nil || !days.Any() {
			return ErrInvalidCronSchedule
		}
	}
	return nil
}

// ConcurrencyInRange reports whether text is an integer in [1, 10].
// Non-numeric text is out of range.
func ConcurrencyInRange(text string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	return n >= MinConcurrentRuns && n <= MaxConcurrentRuns
}
