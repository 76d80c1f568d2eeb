package build

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/modules"
	"git.home.luguber.info/inful/sitebuilder/internal/units"
)

// Stage names, in execution order.
const (
	StageMetadata  = "metadata"
	StageContents  = "contents"
	StageLayouts   = "layouts"
	StageCSS       = "css"
	StageRedirects = "redirects"
	StageServe     = "serve"
)

// Step names outside the stages.
const (
	StepMakePipeline = "make_pipeline"
	StepExecute      = "execute"
	StepPostProcess  = "post_process"
)

// step is one unit of sequential build work.
type step struct {
	name string
	fn   func(ctx context.Context, s *Settings) error
}

// steps returns the full step list for a build.
func (b *Builder) steps(serve bool) []step {
	out := []step{
		{StepMakePipeline, b.makePipeline},
		b.runHook(hooks.BuildBefore),
	}
	out = append(out, b.stage(StageMetadata, hooks.MetadataBefore, hooks.MetadataAfter, registerMetadata)...)
	out = append(out, b.stage(StageContents, hooks.ContentsBefore, hooks.ContentsAfter, registerContents)...)
	out = append(out, b.stage(StageLayouts, hooks.LayoutsBefore, hooks.LayoutsAfter, registerLayouts)...)
	out = append(out, b.stage(StageCSS, hooks.CSSBefore, hooks.CSSAfter, registerCSS)...)
	out = append(out, b.stage(StageRedirects, hooks.RedirectsBefore, hooks.RedirectsAfter, registerRedirects)...)
	if serve {
		out = append(out, b.stage(StageServe, hooks.ServeBefore, hooks.ServeAfter, b.registerServe)...)
	}
	return append(out,
		b.runHook(hooks.BuildAfter),
		step{StepExecute, b.execute},
		step{StepPostProcess, b.postProcess},
	)
}

// stage wraps register between its before and after hooks. Registration
// failures become stage errors.
func (b *Builder) stage(name string, before, after hooks.Checkpoint, register func(ctx context.Context, s *Settings) error) []step {
	return []step{
		b.runHook(before),
		{name, func(ctx context.Context, s *Settings) error {
			if err := register(ctx, s); err != nil {
				if ctx.Err() != nil {
					return err
				}
				return stageError(name, err)
			}
			return nil
		}},
		b.runHook(after),
	}
}

// runHook returns a step invoking the configured callback for cp, if any.
func (b *Builder) runHook(cp hooks.Checkpoint) step {
	return step{cp.String(), func(ctx context.Context, s *Settings) error {
		fn := s.Config.Hooks.Get(cp)
		if fn == nil {
			slog.Debug("No hook", logfields.Checkpoint(cp.String()))
			return nil
		}
		slog.Debug("Running hook", logfields.Checkpoint(cp.String()), logfields.Build(s.Generation))
		if err := callHook(ctx, fn, s.Pipeline); err != nil {
			return hookError(cp, err)
		}
		slog.Debug("Done running hook", logfields.Checkpoint(cp.String()))
		return nil
	}}
}

// callHook invokes fn, turning a panic into an error so a broken hook fails
// its build instead of the process.
func callHook(ctx context.Context, fn hooks.Func, p engine.Pipeline) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, p)
}

// loadModule reports whether the optional module was found. Load failures
// other than cancellation fall back to "not configured".
func loadModule(ctx context.Context, s *Settings, name string, out any) (bool, error) {
	err := s.Modules.Load(ctx, name, out)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if modules.IsNotConfigured(err) {
		slog.Debug("Optional module not configured", logfields.Module(name), logfields.Error(err))
		return false, nil
	}
	return false, err
}

func registerMetadata(ctx context.Context, s *Settings) error {
	var raw any
	found, err := loadModule(ctx, s, modules.DefaultMetadata, &raw)
	if err != nil {
		return err
	}
	if found {
		sets, err := units.ParseDefaults(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", modules.DefaultMetadata, err)
		}
		u, err := units.Defaults(sets)
		if err != nil {
			return fmt.Errorf("%s: %w", modules.DefaultMetadata, err)
		}
		s.Pipeline.Register(u)
	}
	s.Pipeline.Register(units.GitRevision())
	s.Pipeline.Register(units.RootPath())
	s.Pipeline.Register(units.Title())
	s.Pipeline.Register(units.Fingerprint())
	return nil
}

func registerContents(_ context.Context, s *Settings) error {
	s.Pipeline.Register(units.Markdown())
	return nil
}

func registerLayouts(_ context.Context, s *Settings) error {
	l := s.Config.Layouts
	u, err := units.Layouts(units.LayoutOptions{
		Directory:    s.Config.Path(l.Directory),
		Property:     l.Property,
		BeforeSuffix: l.BeforeSuffix,
		AfterSuffix:  l.AfterSuffix,
	})
	if err != nil {
		return err
	}
	s.Pipeline.Register(u, engine.Match(l.Match))
	s.Pipeline.Register(units.Rename())
	return nil
}

func registerCSS(ctx context.Context, s *Settings) error {
	var commands []string
	found, err := loadModule(ctx, s, modules.StylePostProcessor, &commands)
	if err != nil {
		return err
	}
	if !found {
		commands = nil
	}
	u, err := units.Styles(commands)
	if err != nil {
		return fmt.Errorf("%s: %w", modules.StylePostProcessor, err)
	}
	s.Pipeline.Register(u, engine.Match("**/*.css"))
	return nil
}

func registerRedirects(ctx context.Context, s *Settings) error {
	var table map[string]string
	found, err := loadModule(ctx, s, modules.Redirects, &table)
	if err != nil || !found {
		return err
	}
	u, err := units.Redirects(table)
	if err != nil {
		return fmt.Errorf("%s: %w", modules.Redirects, err)
	}
	s.Pipeline.Register(u)
	return nil
}

func (b *Builder) registerServe(_ context.Context, s *Settings) error {
	if b.server == nil {
		return fmt.Errorf("no preview server configured")
	}
	s.Pipeline.Register(units.Serve(b.server))
	return nil
}
