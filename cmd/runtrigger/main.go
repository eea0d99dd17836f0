package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"runtrigger/internal/app"
)

const usage = `usage: runtrigger [-config path] [-log-level level] <command> [args]

commands:
  new <name>                 create a run with the default trigger
  list                       list runs
  show [-o text|json|yaml] <id>
  edit <id> key=value...     edit and save a run
  validate <id>              check a stored run
  watch                      hot-reload config until interrupted
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	env, err := loadEnvironment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: .env:", err)
		return 1
	}

	fset := flag.NewFlagSet("runtrigger", flag.ContinueOnError)
	fset.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	cfgPath := fset.String("config", firstNonEmpty(env.ConfigPath, "./config.yaml"), "path to config yaml/json")
	logLevel := fset.String("log-level", env.LogLevel, "override logging.level")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	rest := fset.Args()
	if len(rest) == 0 {
		fset.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: *cfgPath, LogLevel: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	if err := dispatch(ctx, a, rest[0], rest[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, ue.msg)
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func dispatch(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "new":
		if len(args) == 0 {
			return usageError{"new: missing name"}
		}
		_, err := a.NewRun(ctx, strings.Join(args, " "))
		return err
	case "list", "ls":
		return a.List(ctx)
	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		format := fs.String("o", "text", "output format: text, json or yaml")
		if err := fs.Parse(args); err != nil {
			return usageError{"show: " + err.Error()}
		}
		if fs.NArg() != 1 {
			return usageError{"show: want exactly one run id"}
		}
		return a.Show(ctx, fs.Arg(0), *format)
	case "edit":
		if len(args) < 2 {
			return usageError{"edit: want <id> key=value..."}
		}
		_, err := a.Edit(ctx, args[0], args[1:])
		return err
	case "validate":
		if len(args) != 1 {
			return usageError{"validate: want exactly one run id"}
		}
		return a.Validate(ctx, args[0])
	case "watch":
		return a.Watch(ctx)
	default:
		return usageError{fmt.Sprintf("unknown command %q", cmd)}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
