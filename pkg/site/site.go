// Package site is the public entry point: Run builds a site once, or keeps
// rebuilding it in watch mode while serving it with live reload.
package site

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/livereload"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/server"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// ServeEnv enables watch mode when set to any non-empty value.
const ServeEnv = "SERVE"

// WatchMode reports whether Run would enter watch mode for cfg.
func WatchMode(cfg *Config) bool {
	return cfg.Serve || os.Getenv(ServeEnv) != ""
}

// Run builds the site described by cfg. cfg is not modified.
//
// Without watch mode (see WatchMode) one build runs with clean output and
// onComplete receives its result. In watch mode the site is built, served and
// rebuilt on every matching change until ctx is done; onComplete is called
// after every rebuild that was not superseded by a newer one. An initial
// build failure ends watch mode and is returned.
func Run(ctx context.Context, cfg *Config, onComplete func(error)) error {
	if onComplete == nil {
		onComplete = func(error) {}
	}
	if cfg == nil {
		cfg = &Config{}
	}
	norm, err := cfg.Normalized()
	if err != nil {
		onComplete(err)
		return err
	}
	serve := WatchMode(norm)

	rt, err := newRuntime(ctx, norm, serve)
	if err != nil {
		onComplete(err)
		return err
	}
	defer rt.close()

	if !serve {
		_, err := rt.builder.Build(ctx, false, true)
		onComplete(err)
		return err
	}

	ctrl := watch.NewController(rt.builder, norm, rt.notifier, onComplete).WithRecorder(rt.recorder)
	return ctrl.Run(ctx)
}

// runtime holds the collaborators of one Run call.
type runtime struct {
	builder  *build.Builder
	recorder metrics.Recorder
	notifier watch.Notifier
	server   *server.Server
	history  eventstore.Store
	nats     *notify.NATS
}

func newRuntime(ctx context.Context, cfg *config.Config, serve bool) (*runtime, error) {
	rt := &runtime{recorder: metrics.NoopRecorder{}}
	b := build.NewBuilder(cfg, nil)

	var prec *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		prec = metrics.NewPrometheusRecorder(prom.NewRegistry())
		rt.recorder = prec
	}
	b.WithRecorder(rt.recorder)

	if cfg.History.Path != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Path(cfg.History.Path))
		if err != nil {
			return nil, err
		}
		rt.history = store
		b.WithHistory(store)
	}

	if serve {
		var opts []server.Option
		var sinks notify.Multi
		if !cfg.LiveReload.Disabled {
			hub := livereload.NewHub(rt.recorder)
			opts = append(opts, server.WithLiveReload(hub))
			sinks = append(sinks, hub)
		}
		if prec != nil {
			opts = append(opts, server.WithMetrics(cfg.Metrics.Path, prec.Handler()))
		}
		if cfg.Notify.NATSURL != "" {
			nc, err := notify.NewNATS(ctx, cfg.Notify.NATSURL, cfg.Notify.Subject,
				retry.NewPolicy(retry.Exponential, 500*time.Millisecond, 5*time.Second, 3))
			if err != nil {
				// Browser refresh does not depend on NATS.
				slog.Warn("NATS refresh notifier unavailable", logfields.Error(err))
			} else {
				rt.nats = nc
				sinks = append(sinks, nc)
			}
		}
		rt.server = server.New(cfg.Server, opts...)
		rt.notifier = sinks
		b.WithServer(rt.server)
	}

	rt.builder = b
	return rt, nil
}

func (rt *runtime) close() {
	var errs []error
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, rt.server.Shutdown(ctx))
		cancel()
	}
	if rt.nats != nil {
		errs = append(errs, rt.nats.Close())
	}
	if rt.history != nil {
		errs = append(errs, rt.history.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("shutdown", logfields.Error(err))
	}
}
