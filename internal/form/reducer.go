package form

import "runtrigger/internal/trigger"

// Change is what the form reports upward after every edit.
// MaxConcurrentRuns is nil whenever Trigger is nil.
type Change struct {
	Trigger           *trigger.Trigger `json:"trigger,omitempty"`
	MaxConcurrentRuns *string          `json:"max_concurrent_runs,omitempty"`
	Catchup           bool             `json:"catchup"`
}

// Reduce applies one edit and recomputes the derived cron text.
// Edits on fields that are not editable in the current mode leave s untouched and
// report false.
func Reduce(s State, e Edit) (State, bool) {
	if e == nil || !s.Editable(e.Field()) {
		return s, false
	}
	e.apply(&s)
	s.refresh()
	return s, true
}

// Derive builds the trigger the current state describes.
//
// Out-of-range values still produce a trigger (the validator is the gate). A bound
// whose date/time text does not parse produces no trigger at all.
func Derive(s State) Change {
	c := Change{Catchup: s.Catchup}
	start, err := s.Start()
	if err != nil {
		return c
	}
	end, err := s.End()
	if err != nil {
		return c
	}
	c.Trigger = trigger.Build(s.Unit, s.Magnitude, start, end, s.Kind, s.Cron)
	if c.Trigger != nil {
		v := s.MaxConcurrentRuns
		c.MaxConcurrentRuns = &v
	}
	return c
}

// Flags marks individual fields as invalid for display next to the input.
type Flags struct {
	MagnitudeInvalid   bool
	ConcurrencyInvalid bool
	CronInvalid        bool
	StartInvalid       bool
	EndInvalid         bool
}

func (f Flags) Any() bool {
	return f.MagnitudeInvalid || f.ConcurrencyInvalid || f.CronInvalid || f.StartInvalid || f.EndInvalid
}

func Check(s State) Flags {
	var f Flags
	f.MagnitudeInvalid = s.Kind == trigger.KindIntervaled && !trigger.MagnitudeInRange(s.Unit, s.Magnitude)
	f.ConcurrencyInvalid = !trigger.ConcurrencyInRange(s.MaxConcurrentRuns)
	f.CronInvalid = s.Kind == trigger.KindCron && s.CronMode == CronManual &&
		len(trigger.CronFields(s.Cron)) != trigger.CronFieldCount
	if _, err := s.Start(); err != nil {
		f.StartInvalid = true
	}
	if _, err := s.End(); err != nil {
		f.EndInvalid = true
	}
	return f
}
