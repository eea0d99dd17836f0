package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"runtrigger/internal/eventbus"
	"runtrigger/internal/form"
	"runtrigger/internal/runedit"
	"runtrigger/internal/storage"
	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

var ErrFieldLocked = errors.New("field is locked in the current mode")

// NewRun creates and saves a run with the default trigger. It prints the new ID.
func (a *App) NewRun(ctx context.Context, name string) (storage.RecurringRun, error) {
	st, err := a.requireStore()
	if err != nil {
		return storage.RecurringRun{}, err
	}
	s := runedit.Start(st, runedit.NewRun(name, a.now()), a.sessionOptions()...)
	saved, err := s.Save(ctx)
	if err != nil {
		return storage.RecurringRun{}, err
	}
	fmt.Fprintln(a.out, saved.ID)
	return saved, nil
}

// List prints one line per run with its schedule and validation status.
func (a *App) List(ctx context.Context) error {
	st, err := a.requireStore()
	if err != nil {
		return err
	}
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tMAX\tCATCHUP\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, describeSchedule(r.Trigger), dash(r.MaxConcurrency), onOff(!r.NoCatchup), status(r))
	}
	return tw.Flush()
}

// Edit applies key=value tokens to run id and saves the result.
// A token aimed at a locked field aborts the edit before anything is saved.
func (a *App) Edit(ctx context.Context, id string, tokens []string) (storage.RecurringRun, error) {
	ops, err := parseEdits(tokens)
	if err != nil {
		return storage.RecurringRun{}, err
	}
	st, err := a.requireStore()
	if err != nil {
		return storage.RecurringRun{}, err
	}
	events, unsub := a.bus.Subscribe(len(ops)+1, form.EventChanged, runedit.EventSaved)
	defer unsub()

	s, err := runedit.Open(ctx, st, id, a.sessionOptions()...)
	if err != nil {
		return storage.RecurringRun{}, err
	}
	for _, op := range ops {
		if !op.apply(s) {
			return storage.RecurringRun{}, fmt.Errorf("%s: %w", op.token, ErrFieldLocked)
		}
	}
	if flags := s.Form().Flags(); flags.Any() {
		a.log.Debug("form has invalid fields", logx.Any("flags", flags))
	}
	saved, err := s.Save(ctx)
	if err != nil {
		return storage.RecurringRun{}, err
	}
	changes := a.logEditTrail(events)
	fmt.Fprintf(a.out, "saved %s: %s (%d trigger changes)\n", saved.ID, describeSchedule(saved.Trigger), changes)
	return saved, nil
}

// logEditTrail drains what one edit published and returns the number of form
// changes among it.
func (a *App) logEditTrail(events <-chan eventbus.Event) int {
	changes := 0
	for {
		select {
		case e := <-events:
			switch d := e.Data.(type) {
			case form.Change:
				changes++
				fields := []logx.Field{logx.Int("seq", changes), logx.Bool("has_trigger", d.Trigger != nil)}
				if d.Trigger != nil {
					fields = append(fields, logx.String("schedule", describeSchedule(d.Trigger)))
				}
				a.log.Debug("trigger form changed", fields...)
			case storage.RecurringRun:
				a.log.Info("edit saved",
					logx.String("run_id", d.ID),
					logx.Int("trigger_changes", changes),
					logx.String("schedule", describeSchedule(d.Trigger)),
				)
			}
		default:
			return changes
		}
	}
}

// Validate runs the edit-session checks against a stored run without
// changing it. The returned error is the validation failure, if any.
func (a *App) Validate(ctx context.Context, id string) error {
	st, err := a.requireStore()
	if err != nil {
		return err
	}
	s, err := runedit.Open(ctx, st, id, a.sessionOptions()...)
	if err != nil {
		return err
	}
	if err := s.Err(); err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func status(r storage.RecurringRun) string {
	if strings.TrimSpace(r.Name) == "" {
		return runedit.ErrNameRequired.Error()
	}
	if err := trigger.EnsureRecurringRunParamsAreValid(r.Trigger, r.MaxConcurrency); err != nil {
		return err.Error()
	}
	if !r.Enabled {
		return "disabled"
	}
	return "ok"
}

// describeSchedule renders a trigger for humans: "cron 0 9 * * 1 ?" or "every 3 hours".
func describeSchedule(t *trigger.Trigger) string {
	switch {
	case t == nil:
		return "-"
	case t.CronSchedule != nil:
		return "cron " + t.CronSchedule.Cron
	case t.PeriodicSchedule != nil:
		secs, err := strconv.ParseInt(strings.TrimSpace(t.PeriodicSchedule.IntervalSecond), 10, 64)
		if err != nil || secs <= 0 {
			return "every ? (" + t.PeriodicSchedule.IntervalSecond + "s)"
		}
		unit, n := trigger.IntervalUnit(secs)
		if n == 1 {
			return "every " + unit.String()
		}
		return fmt.Sprintf("every %d %ss", n, unit)
	}
	return "-"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
