package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	yaml "go.yaml.in/yaml/v3"

	"runtrigger/internal/runedit"
	"runtrigger/internal/storage"
	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

// runView is what `show -o json|yaml` prints.
type runView struct {
	storage.RecurringRun `yaml:",inline"`

	Valid    bool                 `json:"valid" yaml:"valid"`
	Error    string               `json:"error,omitempty" yaml:"error,omitempty"`
	NextRuns []time.Time          `json:"next_runs,omitempty" yaml:"next_runs,omitempty"`
	History  []storage.AuditEntry `json:"history,omitempty" yaml:"history,omitempty"`
}

func (a *App) buildView(ctx context.Context, id string) (runView, error) {
	st, err := a.requireStore()
	if err != nil {
		return runView{}, err
	}
	s, err := runedit.Open(ctx, st, id, a.sessionOptions()...)
	if err != nil {
		return runView{}, err
	}
	run := s.Draft()
	v := runView{RecurringRun: run, Valid: s.Err() == nil, Error: s.ErrorMessage()}

	if run.Trigger != nil {
		next, err := trigger.NextRuns(run.Trigger, a.now(), a.editorSettings().PreviewCount)
		switch {
		case err != nil && v.Valid:
			a.log.Info("valid run has no preview", logx.String("run_id", run.ID), logx.String("schedule", describeSchedule(run.Trigger)), logx.Err(err))
		case err != nil:
			a.log.Debug("no preview for trigger", logx.String("run_id", run.ID), logx.Err(err))
		}
		v.NextRuns = next
	}

	hist, err := st.ListAudit(ctx, run.ID)
	if err != nil {
		a.log.Warn("audit read failed", logx.String("run_id", run.ID), logx.Err(err))
	}
	v.History = hist
	return v, nil
}

// Show prints one run. format is "text" (default), "json" or "yaml".
func (a *App) Show(ctx context.Context, id, format string) error {
	v, err := a.buildView(ctx, id)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		a.printText(v)
		return nil
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(b))
		return err
	case "yaml", "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = a.out.Write(b)
		return err
	default:
		return fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
	}
}

func (a *App) printText(v runView) {
	w := a.out
	now := a.now()
	fmt.Fprintf(w, "ID:          %s\n", v.ID)
	fmt.Fprintf(w, "Name:        %s\n", dash(v.Name))
	if v.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", v.Description)
	}
	fmt.Fprintf(w, "Schedule:    %s\n", describeSchedule(v.Trigger))
	start, end := v.Trigger.Bounds()
	if start != nil {
		fmt.Fprintf(w, "Starts:      %s\n", start.Local().Format(time.RFC3339))
	}
	if end != nil {
		fmt.Fprintf(w, "Ends:        %s\n", end.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Max runs:    %s\n", dash(v.MaxConcurrency))
	fmt.Fprintf(w, "Catchup:     %s\n", onOff(!v.NoCatchup))
	fmt.Fprintf(w, "Updated:     %s\n", humanize.RelTime(v.UpdatedAt, now, "ago", "from now"))
	if v.Valid {
		fmt.Fprintln(w, "Status:      ok")
	} else {
		fmt.Fprintf(w, "Status:      %s\n", v.Error)
	}

	if len(v.NextRuns) > 0 {
		fmt.Fprintln(w, "Next runs:")
		for _, t := range v.NextRuns {
			fmt.Fprintf(w, "  %s  (%s)\n", t.Local().Format("Mon 2006-01-02 15:04"), humanize.RelTime(t, now, "ago", "from now"))
		}
	}
	if n := len(v.History); n > 0 {
		last := v.History[n-1]
		result := "ok"
		if !last.OK {
			result = "failed: " + last.Error
		}
		fmt.Fprintf(w, "History:     %s saves, last %s %s\n", humanize.Comma(int64(n)), humanize.RelTime(last.At, now, "ago", "from now"), result)
	}
}
