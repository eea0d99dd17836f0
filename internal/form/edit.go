package form

import "runtrigger/internal/trigger"

// Edit is one user action on the form. The set of edits is closed.
type Edit interface {
	Field() Field
	apply(s *State)
}

type SetKind struct{ Kind trigger.Kind }

func (SetKind) Field() Field     { return FieldKind }
func (e SetKind) apply(s *State) { s.Kind = e.Kind }

type SetUnit struct{ Unit trigger.Interval }

func (SetUnit) Field() Field     { return FieldUnit }
func (e SetUnit) apply(s *State) { s.Unit = e.Unit }

// SetMagnitude stores the value as typed; values below 1 are flagged, not rejected.
type SetMagnitude struct{ Value int64 }

func (SetMagnitude) Field() Field     { return FieldMagnitude }
func (e SetMagnitude) apply(s *State) { s.Magnitude = e.Value }

type SetHasStart struct{ On bool }

func (SetHasStart) Field() Field     { return FieldStart }
func (e SetHasStart) apply(s *State) { s.Bounds.HasStart = e.On }

type SetStartDate struct{ Date string }

func (SetStartDate) Field() Field     { return FieldStart }
func (e SetStartDate) apply(s *State) { s.Bounds.StartDate = e.Date }

type SetStartTime struct{ Time string }

func (SetStartTime) Field() Field     { return FieldStart }
func (e SetStartTime) apply(s *State) { s.Bounds.StartTime = e.Time }

type SetHasEnd struct{ On bool }

func (SetHasEnd) Field() Field     { return FieldEnd }
func (e SetHasEnd) apply(s *State) { s.Bounds.HasEnd = e.On }

type SetEndDate struct{ Date string }

func (SetEndDate) Field() Field     { return FieldEnd }
func (e SetEndDate) apply(s *State) { s.Bounds.EndDate = e.Date }

type SetEndTime struct{ Time string }

func (SetEndTime) Field() Field     { return FieldEnd }
func (e SetEndTime) apply(s *State) { s.Bounds.EndTime = e.Time }

// ToggleWeekday flips one day, Sunday=0.
type ToggleWeekday struct{ Day int }

func (ToggleWeekday) Field() Field     { return FieldWeekdays }
func (e ToggleWeekday) apply(s *State) { s.Weekdays = s.Weekdays.Toggle(e.Day) }

// ToggleAllWeekdays clears the selection when every day is selected and selects
// every day otherwise.
type ToggleAllWeekdays struct{}

func (ToggleAllWeekdays) Field() Field { return FieldWeekdays }
func (ToggleAllWeekdays) apply(s *State) {
	if s.Weekdays.All() {
		s.Weekdays = trigger.Weekdays{}
		return
	}
	s.Weekdays = trigger.AllWeekdays()
}

type SetManualCron struct{ On bool }

func (SetManualCron) Field() Field { return FieldManualCron }
func (e SetManualCron) apply(s *State) {
	if e.On {
		s.CronMode = CronManual
		return
	}
	s.CronMode = CronDerived
}

type SetCron struct{ Cron string }

func (SetCron) Field() Field     { return FieldCron }
func (e SetCron) apply(s *State) { s.Cron = e.Cron }

type SetMaxConcurrentRuns struct{ Value string }

func (SetMaxConcurrentRuns) Field() Field     { return FieldMaxConcurrentRuns }
func (e SetMaxConcurrentRuns) apply(s *State) { s.MaxConcurrentRuns = e.Value }

type SetCatchup struct{ On bool }

func (SetCatchup) Field() Field     { return FieldCatchup }
func (e SetCatchup) apply(s *State) { s.Catchup = e.On }
