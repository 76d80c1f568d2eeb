package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/modules"
	"git.home.luguber.info/inful/sitebuilder/internal/units"
)

// PipelineFactory constructs the pipeline handle for one build.
type PipelineFactory func(opts engine.Options) (engine.Pipeline, error)

func defaultPipeline(opts engine.Options) (engine.Pipeline, error) {
	return engine.New(opts)
}

// Builder runs builds for one configuration. It is safe to call Build from
// several goroutines; the shared Coordinator decides which build is current.
type Builder struct {
	cfg         *config.Config
	coord       *Coordinator
	loader      *modules.Loader
	newPipeline PipelineFactory
	server      units.Server
	recorder    metrics.Recorder
	history     eventstore.Store
}

// NewBuilder creates a Builder. cfg must already be normalized (see
// config.Config.Normalized); the Builder never mutates it.
func NewBuilder(cfg *config.Config, coord *Coordinator) *Builder {
	if coord == nil {
		coord = NewCoordinator()
	}
	return &Builder{
		cfg:         cfg,
		coord:       coord,
		loader:      modules.NewLoader(cfg.BaseDirectory),
		newPipeline: defaultPipeline,
		recorder:    metrics.NoopRecorder{},
	}
}

// WithServer sets the preview server registered by the serve stage.
func (b *Builder) WithServer(srv units.Server) *Builder {
	b.server = srv
	return b
}

// WithRecorder sets the metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	b.recorder = r
	return b
}

// WithHistory records build lifecycle events in store.
func (b *Builder) WithHistory(store eventstore.Store) *Builder {
	b.history = store
	return b
}

// WithPipelineFactory replaces the engine used for each build.
func (b *Builder) WithPipelineFactory(f PipelineFactory) *Builder {
	if f != nil {
		b.newPipeline = f
	}
	return b
}

// Coordinator returns the generation coordinator shared by this Builder's builds.
func (b *Builder) Coordinator() *Coordinator { return b.coord }

// Config returns the configuration builds run with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Build runs one build attempt. The returned Report is never nil. A build
// overtaken by a newer one returns an error satisfying IsSuperseded.
func (b *Builder) Build(ctx context.Context, serve, clean bool) (*Report, error) {
	gen := b.coord.Begin()
	s := &Settings{
		Config:     b.cfg,
		Serve:      serve,
		Clean:      clean,
		Modules:    b.loader.Session(),
		Generation: gen,
		BuildID:    uuid.NewString(),
	}
	start := time.Now()
	report := newReport(s, start)
	log := slog.With(logfields.Build(gen), logfields.BuildID(s.BuildID))
	log.Info("Build started", slog.Bool("serve", serve), slog.Bool("clean", clean))
	b.record(ctx, s, eventstore.TypeBuildStarted, eventstore.BuildStarted{
		Generation: gen, Serve: serve, Clean: clean, Source: b.cfg.Source, Dest: b.cfg.Destination,
	})

	err := b.run(ctx, s, report)
	if s.Pipeline != nil {
		report.Units = s.Pipeline.Units()
	}
	elapsed := time.Since(start)
	b.recorder.ObserveBuildDuration(elapsed)

	switch {
	case err == nil:
		report.finish(OutcomeSuccess)
		b.recorder.IncBuildOutcome(metrics.ResultSuccess)
		b.record(ctx, s, eventstore.TypeBuildCompleted, eventstore.BuildCompleted{
			DurationMS: ms(elapsed), Units: report.Units,
		})
		log.Info("Build complete", logfields.DurationMS(ms(elapsed)))
	case IsSuperseded(err):
		report.finish(OutcomeSuperseded)
		b.recorder.IncBuildOutcome(metrics.ResultSuperseded)
		b.record(ctx, s, eventstore.TypeBuildSuperseded, eventstore.BuildSuperseded{
			Step: report.FailedStep, Current: b.coord.Current(),
		})
		log.Debug("Build superseded", logfields.Step(report.FailedStep))
	default:
		report.finish(OutcomeFailed)
		b.recorder.IncBuildOutcome(metrics.ResultFailed)
		b.record(ctx, s, eventstore.TypeBuildFailed, eventstore.BuildFailed{
			Step:     report.FailedStep,
			Category: string(ferrors.GetCategory(err)),
			Error:    err.Error(),
			Duration: ms(elapsed),
		})
		log.Error("Build failed", logfields.Step(report.FailedStep), logfields.Error(err))
	}
	return report, err
}

// run executes the steps, checking the generation before each one and once
// after the last.
func (b *Builder) run(ctx context.Context, s *Settings, report *Report) error {
	for _, st := range b.steps(s.Serve) {
		if err := b.coord.Check(s.Generation, st.name); err != nil {
			report.FailedStep = st.name
			return err
		}
		if err := ctx.Err(); err != nil {
			report.FailedStep = st.name
			b.recorder.IncStepResult(st.name, metrics.ResultCanceled)
			return err
		}

		t0 := time.Now()
		err := st.fn(ctx, s)
		dur := time.Since(t0)
		report.StepDurations[st.name] = dur
		report.Steps = append(report.Steps, st.name)
		b.recorder.ObserveStepDuration(st.name, dur)
		if err != nil {
			report.FailedStep = st.name
			b.recorder.IncStepResult(st.name, metrics.ResultFailed)
			return err
		}
		if cp, ok := hooks.ParseCheckpoint(st.name); ok && s.Config.Hooks.Get(cp) != nil {
			report.HooksInvoked = append(report.HooksInvoked, st.name)
		}
		b.recorder.IncStepResult(st.name, metrics.ResultSuccess)
		b.record(ctx, s, eventstore.TypeStepCompleted, eventstore.StepCompleted{Step: st.name, DurationMS: ms(dur)})
	}
	if err := b.coord.Check(s.Generation, "complete"); err != nil {
		report.FailedStep = "complete"
		return err
	}
	return nil
}

func (b *Builder) makePipeline(_ context.Context, s *Settings) error {
	p, err := b.newPipeline(engine.Options{
		Directory:   b.cfg.BaseDirectory,
		Source:      b.cfg.Source,
		Destination: b.cfg.Destination,
		Clean:       s.Clean,
		Ignore:      b.cfg.Ignore,
		Current:     func() bool { return b.coord.IsCurrent(s.Generation) },
		WriteLock:   b.coord.OutputLock(),
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "construct pipeline").Build()
	}
	s.Pipeline = p
	return nil
}

func (b *Builder) execute(ctx context.Context, s *Settings) error {
	if err := s.Pipeline.Execute(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, engine.ErrNotCurrent) {
			return supersededError(s.Generation, b.coord.Current(), StepExecute)
		}
		return executionError(err)
	}
	return nil
}

func (b *Builder) postProcess(ctx context.Context, s *Settings) error {
	var err error
	switch {
	case b.cfg.PostProcess != nil:
		err = b.cfg.PostProcess(ctx)
	case b.cfg.PostProcessCommand != "":
		err = hooks.RunShell(ctx, b.cfg.BaseDirectory, b.cfg.PostProcessCommand,
			hooks.EnvSource+"="+s.Pipeline.Source(),
			hooks.EnvDestination+"="+s.Pipeline.Destination(),
		)
	default:
		return nil
	}
	if err != nil {
		return postProcessError(err)
	}
	return nil
}

// record appends a history event. History is best effort and never fails a build.
func (b *Builder) record(ctx context.Context, s *Settings, eventType string, payload any) {
	if b.history == nil {
		return
	}
	r, err := eventstore.NewRecord(s.BuildID, s.Generation, eventType, payload)
	if err == nil {
		err = b.history.Append(context.WithoutCancel(ctx), r)
	}
	if err != nil {
		slog.Warn("Failed to record build event", logfields.BuildID(s.BuildID), slog.String("type", eventType), logfields.Error(err))
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
