package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Builder runs one build attempt.
type Builder interface {
	Build(ctx context.Context, serve, clean bool) (*build.Report, error)
}

// Rebuild trigger sources.
const (
	TriggerChange   = "change"
	TriggerSchedule = "schedule"
)

type noopNotifier struct{}

func (noopNotifier) RefreshAll() {}

// Controller owns one watch session.
type Controller struct {
	builder    Builder
	cfg        *config.Config
	notifier   Notifier
	onComplete func(error)
	recorder   metrics.Recorder

	wg sync.WaitGroup
}

// NewController creates a Controller. cfg must be normalized. A nil notifier
// or onComplete is replaced by a no-op.
func NewController(b Builder, cfg *config.Config, n Notifier, onComplete func(error)) *Controller {
	if n == nil {
		n = noopNotifier{}
	}
	if onComplete == nil {
		onComplete = func(error) {}
	}
	return &Controller{
		builder:    b,
		cfg:        cfg,
		notifier:   n,
		onComplete: onComplete,
		recorder:   metrics.NoopRecorder{},
	}
}

// WithRecorder sets the metrics recorder.
func (c *Controller) WithRecorder(r metrics.Recorder) *Controller {
	if r != nil {
		c.recorder = r
	}
	return c
}

// Run performs the initial serving build and then rebuilds on every matching
// change until ctx is done. An initial build failure is returned and watch
// mode does not start. Run waits for in-flight rebuilds before returning.
func (c *Controller) Run(ctx context.Context) error {
	if _, err := c.builder.Build(ctx, true, true); err != nil {
		return err
	}
	slog.Info("initial build complete, watching for changes", slog.Any("globs", c.cfg.Watch))

	w, err := NewWatcher(c.cfg.BaseDirectory, c.cfg.Path(c.cfg.Destination), c.cfg.Watch, c.cfg.Watcher.Debounce)
	if err != nil {
		return err
	}
	ref := newRefresher(c.cfg.LiveReload, c.notifier)

	var sched *Scheduler
	if c.cfg.Watcher.RebuildInterval > 0 {
		sched, err = NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.SchedulePeriodicRebuild(c.cfg.Watcher.RebuildInterval, func() {
			c.rebuild(ctx, ref, TriggerSchedule)
		}); err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
	}

	err = w.Run(ctx, func(string) { c.rebuild(ctx, ref, TriggerChange) })

	if sched != nil {
		if serr := sched.Stop(); serr != nil {
			slog.Warn("scheduler shutdown", logfields.Error(serr))
		}
	}
	c.wg.Wait()
	ref.Stop()
	return err
}

// rebuild starts a non-serving build on its own goroutine. It cleans the
// destination only when the configuration asks for it.
func (c *Controller) rebuild(ctx context.Context, ref refresher, source string) {
	if ctx.Err() != nil {
		return
	}
	c.recorder.IncRebuildTrigger(source)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, err := c.builder.Build(ctx, false, c.cfg.Clean)
		switch {
		case err == nil:
			ref.BuildSucceeded()
			c.onComplete(nil)
		case build.IsSuperseded(err):
			slog.Debug("Rebuild superseded", logfields.Error(err))
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			slog.Debug("Rebuild canceled by shutdown")
		default:
			slog.Error("Rebuild failed, still watching for changes", slog.String("trigger", source), logfields.Error(err))
			c.onComplete(err)
		}
	}()
}
