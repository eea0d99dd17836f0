package app

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"runtrigger/internal/config"
	"runtrigger/internal/eventbus"
	"runtrigger/internal/runedit"
	"runtrigger/internal/storage"
	logx "runtrigger/pkg/logx"
)

// Options configures New. Zero values pick the defaults.
type Options struct {
	ConfigPath string
	// LogLevel overrides logging.level (also across hot reloads) when set.
	LogLevel string
	Out      io.Writer
	Now      func() time.Time
}

// App wires config, logging, storage and the edit session for the CLI.
type App struct {
	cfgm     *config.ConfigManager
	logs     *logx.Service
	log      logx.Logger
	bus      eventbus.Bus
	store    storage.Store
	logLevel string

	out io.Writer
	now func() time.Time

	mu     sync.RWMutex
	editor config.EditorSettings
}

func New(opts Options) (*App, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = "./config.yaml"
	}
	if opts.Out == nil {
		opts.Out = logx.Stdout()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfgm := config.NewConfigManager(path)
	cfgm.SetLogger(logx.NewConsole(firstNonEmpty(opts.LogLevel, "info")).With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	editor, err := cfg.Editor.Settings()
	if err != nil {
		return nil, err
	}

	logCfg := mapLogConfig(cfg)
	logCfg.Level = firstNonEmpty(opts.LogLevel, logCfg.Level)
	logSvc, log := logx.New(logCfg)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log.With(logx.String("comp", "app")),
		bus:      eventbus.New(),
		logLevel: opts.LogLevel,
		out:      opts.Out,
		now:      opts.Now,
		editor:   editor,
	}

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.log.Debug("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) editorSettings() config.EditorSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.editor
}

// requireStore fails every command that needs persistence when storage is off.
func (a *App) requireStore() (storage.Store, error) {
	if a.store == nil {
		return nil, storage.ErrDisabled
	}
	return a.store, nil
}

func (a *App) sessionOptions() []runedit.Option {
	es := a.editorSettings()
	return []runedit.Option{
		runedit.WithLogger(a.log.With(logx.String("comp", "runedit"))),
		runedit.WithBus(a.bus),
		runedit.WithClock(a.now),
		runedit.WithEndOffset(es.DefaultEndOffset),
		runedit.WithEmitLogRate(es.EmitLogRatePerSec),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
