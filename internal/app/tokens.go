package app

import (
	"fmt"
	"strconv"
	"strings"

	"runtrigger/internal/form"
	"runtrigger/internal/runedit"
	"runtrigger/internal/trigger"
)

// editOp is one parsed key=value token from `runtrigger edit`.
type editOp struct {
	token string
	apply func(*runedit.Session) bool
}

func formOp(token string, e form.Edit) editOp {
	return editOp{token: token, apply: func(s *runedit.Session) bool { return s.Apply(e) }}
}

// parseEdits parses every token up front so a typo never half-applies.
func parseEdits(tokens []string) ([]editOp, error) {
	ops := make([]editOp, 0, len(tokens))
	for _, tok := range tokens {
		op, err := parseEdit(tok)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseEdit(token string) (editOp, error) {
	key, val, hasVal := strings.Cut(token, "=")
	key = strings.ToLower(strings.TrimSpace(key))

	if key == "all-days" {
		if hasVal {
			return editOp{}, fmt.Errorf("%s: takes no value", key)
		}
		return formOp(token, form.ToggleAllWeekdays{}), nil
	}
	if !hasVal {
		return editOp{}, fmt.Errorf("%q: expected key=value", token)
	}

	wrap := func(err error) error { return fmt.Errorf("%s: %w", key, err) }

	switch key {
	case "kind":
		k, err := trigger.ParseKind(val)
		if err != nil {
			return editOp{}, wrap(err)
		}
		return formOp(token, form.SetKind{Kind: k}), nil
	case "unit":
		u, err := trigger.ParseInterval(val)
		if err != nil {
			return editOp{}, wrap(err)
		}
		return formOp(token, form.SetUnit{Unit: u}), nil
	case "every":
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return editOp{}, wrap(fmt.Errorf("not an integer: %q", val))
		}
		return formOp(token, form.SetMagnitude{Value: n}), nil
	case "start", "end", "manual-cron", "catchup":
		on, err := parseOnOff(val)
		if err != nil {
			return editOp{}, wrap(err)
		}
		switch key {
		case "start":
			return formOp(token, form.SetHasStart{On: on}), nil
		case "end":
			return formOp(token, form.SetHasEnd{On: on}), nil
		case "manual-cron":
			return formOp(token, form.SetManualCron{On: on}), nil
		default:
			return formOp(token, form.SetCatchup{On: on}), nil
		}
	case "start-date":
		return formOp(token, form.SetStartDate{Date: strings.TrimSpace(val)}), nil
	case "start-time":
		return formOp(token, form.SetStartTime{Time: strings.TrimSpace(val)}), nil
	case "end-date":
		return formOp(token, form.SetEndDate{Date: strings.TrimSpace(val)}), nil
	case "end-time":
		return formOp(token, form.SetEndTime{Time: strings.TrimSpace(val)}), nil
	case "day":
		d, err := trigger.ParseWeekday(val)
		if err != nil {
			return editOp{}, wrap(err)
		}
		return formOp(token, form.ToggleWeekday{Day: d}), nil
	case "cron":
		// verbatim: field separators are significant
		return formOp(token, form.SetCron{Cron: val}), nil
	case "max":
		return formOp(token, form.SetMaxConcurrentRuns{Value: strings.TrimSpace(val)}), nil
	case "name":
		return editOp{token: token, apply: func(s *runedit.Session) bool { s.SetName(val); return true }}, nil
	case "description":
		return editOp{token: token, apply: func(s *runedit.Session) bool { s.SetDescription(val); return true }}, nil
	default:
		return editOp{}, fmt.Errorf("unknown edit key %q", key)
	}
}

func parseOnOff(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("want on|off, got %q", v)
	}
	return b, nil
}
