package app

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"runtrigger/internal/config"
	"runtrigger/internal/eventbus"
	"runtrigger/internal/runtime/supervisor"
	"runtrigger/internal/trigger"
	logx "runtrigger/pkg/logx"
)

const (
	EventConfigReloaded = "config.reloaded"

	stopTimeout = 5 * time.Second
)

// Watch keeps the process alive, hot-reloading config until ctx is done.
// Under systemd (Type=notify) it reports READY, RELOADING and STOPPING.
func (a *App) Watch(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	events, unsub := a.bus.Subscribe(128)
	sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				cfg = drainLatest(sub, cfg)
				a.notify(daemon.SdNotifyReloading)
				a.applyConfig(c, last, cfg)
				last = cfg
				a.notify(daemon.SdNotifyReady)
			}
		}
	})

	sup.Go("config.watch", a.cfgm.Watch)

	a.logUpcoming(sup.Context())
	a.notify(daemon.SdNotifyReady)
	a.log.Info("watching config", logx.String("path", a.cfgm.Path()))

	<-sup.Context().Done()
	a.notify(daemon.SdNotifyStopping)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err := sup.Stop(stopCtx)
	a.log.Info("watch stopped")
	return err
}

// drainLatest coalesces bursts so only the newest queued config is applied.
func drainLatest(ch <-chan *config.Config, cfg *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-ch:
			if !ok {
				return cfg
			}
			if newer != nil {
				cfg = newer
			}
		default:
			return cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	logCfg := mapLogConfig(newCfg)
	logCfg.Level = firstNonEmpty(a.logLevel, logCfg.Level)
	a.logs.Apply(logCfg)

	for _, s := range sections {
		switch s {
		case "editor":
			es, err := newCfg.Editor.Settings()
			if err != nil {
				a.log.Warn("invalid editor config; keeping previous", logx.Err(err))
				continue
			}
			a.mu.Lock()
			a.editor = es
			a.mu.Unlock()
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	a.bus.Publish(eventbus.Event{Type: EventConfigReloaded, Data: sections})
	a.logUpcoming(ctx)
}

// logUpcoming logs the next fire time of every stored run.
func (a *App) logUpcoming(ctx context.Context) {
	if a.store == nil {
		return
	}
	runs, err := a.store.ListRuns(ctx)
	if err != nil {
		a.log.Warn("list runs failed", logx.Err(err))
		return
	}
	now := a.now()
	for _, r := range runs {
		fields := []logx.Field{logx.String("run_id", r.ID), logx.String("name", r.Name), logx.String("schedule", describeSchedule(r.Trigger))}
		next, err := trigger.NextRuns(r.Trigger, now, 1)
		switch {
		case err != nil:
			a.log.Debug("run has no schedule", append(fields, logx.Err(err))...)
		case len(next) == 0:
			a.log.Info("run has no upcoming fire", fields...)
		default:
			a.log.Info("next fire", append(fields, logx.Time("at", next[0]))...)
		}
	}
}

func (a *App) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}
