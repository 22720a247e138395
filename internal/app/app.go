// Package app wires the reporter runtime and runs the serve daemon: a
// minute trigger over the config directory, a config watcher and systemd
// readiness notifications.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"reporter/internal/runtime/supervisor"
	"reporter/internal/task/due"
	"reporter/pkg/logx"
)

// EveryMinute is the trigger spec for the serve daemon.
const EveryMinute = "* * * * *"

type App struct {
	rt  *Runtime
	log logx.Logger

	sup  *supervisor.Supervisor
	cron *cron.Cron

	// OnTick observes each finished tick. Set before Start.
	OnTick func(due.Report)
}

func New(rt *Runtime) *App {
	return &App{rt: rt, log: rt.Log().With(logx.String("comp", "app"))}
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	cl := cronLogger{log: a.log.With(logx.String("comp", "cron"))}
	a.cron = cron.New(
		cron.WithLocation(a.rt.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := a.cron.AddFunc(EveryMinute, func() {
		_, _ = a.Tick(a.sup.Context(), time.Now())
	}); err != nil {
		return err
	}
	a.cron.Start()

	env := a.rt.Env()
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return watchConfig(c, env.ConfigDir, nil, a.log.With(logx.String("comp", "config")), func(path string) {
			a.logCheck(a.rt.CheckFile(c, path))
		})
	}, supervisor.WithRestartBackoff(time.Second, time.Minute))

	if iv, err := daemon.SdWatchdogEnabled(false); err == nil && iv > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return watchdog(c, iv/2)
		})
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd.notify_failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd.ready")
	}

	a.log.Info("app.started",
		logx.String("dir", env.ConfigDir),
		logx.String("tz", a.rt.Location().String()),
		logx.Bool("ledger", a.rt.Ledger() != nil),
	)
	return nil
}

// Stop waits for the in-flight tick, then stops every goroutine. Both are
// bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var errs []error
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	a.log.Info("app.stopped")
	return errors.Join(errs...)
}

// Tick runs every task due at now once.
func (a *App) Tick(ctx context.Context, now time.Time) (due.Report, error) {
	log := a.rt.Log().With(logx.String("run_id", uuid.NewString()))
	runner := a.rt.Runner()
	runner.Log = log

	start := time.Now()
	rep, err := runner.Run(ctx, now)
	if err != nil {
		log.Error("tick.failed", logx.Err(err))
		return rep, err
	}
	if rep.Summary.Total > 0 || len(rep.Problems) > 0 {
		log.Info("tick.finished",
			logx.Int("total", rep.Summary.Total),
			logx.Int("failed", rep.Summary.Failed),
			logx.Int("problems", len(rep.Problems)),
			logx.Duration("took", time.Since(start)),
		)
	}
	if a.OnTick != nil {
		a.OnTick(rep)
	}
	return rep, nil
}

func (a *App) logCheck(fc FileCheck) {
	if fc.OK() {
		a.log.Info("config.valid", logx.String("path", fc.Path), logx.Int("tasks", fc.Tasks))
		return
	}
	for _, p := range fc.Problems {
		a.log.Warn("config.invalid", logx.String("path", fc.Path), logx.Err(p))
	}
}

func watchdog(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron."+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron."+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
