package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "site", "index.md"), "---\nlayout: page\n---\n# Home\n")
	writeFile(t, filepath.Join(dir, "site", "css", "main.css"), "body{}\n")
	writeFile(t, filepath.Join(dir, "layouts", "page-before.html"), "<body>")
	writeFile(t, filepath.Join(dir, "layouts", "page-after.html"), "</body>")
	return dir
}

func newBuilder(t *testing.T, dir string, mutate func(*config.Config)) *Builder {
	t.Helper()
	raw := &config.Config{Source: "./site", Destination: "./build", BaseDirectory: dir}
	if mutate != nil {
		mutate(raw)
	}
	cfg, err := raw.Normalized()
	require.NoError(t, err)
	return NewBuilder(cfg, NewCoordinator())
}

// hookLog records hook invocations in order.
type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (h *hookLog) install(c *config.Config, override map[hooks.Checkpoint]hooks.Func) {
	for _, cp := range hooks.All() {
		if fn, ok := override[cp]; ok {
			c.Hooks.Set(cp, h.wrap(cp, fn))
			continue
		}
		c.Hooks.Set(cp, h.wrap(cp, nil))
	}
}

func (h *hookLog) wrap(cp hooks.Checkpoint, fn hooks.Func) hooks.Func {
	return func(ctx context.Context, p engine.Pipeline) error {
		h.mu.Lock()
		h.calls = append(h.calls, cp.String())
		h.mu.Unlock()
		if fn != nil {
			return fn(ctx, p)
		}
		return nil
	}
}

func (h *hookLog) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

type fakeServer struct {
	mu    sync.Mutex
	roots []string
}

func (f *fakeServer) Start(root string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots = append(f.roots, root)
	return nil
}

var fullOrder = []string{
	"buildBefore",
	"metadataBefore", "metadataAfter",
	"contentsBefore", "contentsAfter",
	"layoutsBefore", "layoutsAfter",
	"cssBefore", "cssAfter",
	"redirectsBefore", "redirectsAfter",
	"serveBefore", "serveAfter",
	"buildAfter",
}

func TestBuild_NoHooksNoModules(t *testing.T) {
	dir := newProject(t)
	b := newBuilder(t, dir, nil)

	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Empty(t, report.HooksInvoked)
	assert.Equal(t, uint64(1), report.Generation)
	assert.NotEmpty(t, report.BuildID)
	assert.Equal(t, []string{"git-revision", "rootpath", "title", "fingerprint", "markdown", "layouts", "rename", "styles"}, report.Units)

	out, err := os.ReadFile(filepath.Join(dir, "build", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<body><h1>Home</h1>")
	assert.FileExists(t, filepath.Join(dir, "build", "css", "main.css"))
	assert.NotContains(t, report.Steps, StageServe)
}

func TestBuild_HookOrderIsStableAcrossBuilds(t *testing.T) {
	dir := newProject(t)
	log := &hookLog{}
	b := newBuilder(t, dir, func(c *config.Config) { log.install(c, nil) })
	srv := &fakeServer{}
	b.WithServer(srv)

	for i := 0; i < 3; i++ {
		report, err := b.Build(context.Background(), true, i == 0)
		require.NoError(t, err)
		assert.Equal(t, fullOrder, report.HooksInvoked)
	}
	calls := log.snapshot()
	require.Len(t, calls, 3*len(fullOrder))
	for i := 0; i < 3; i++ {
		assert.Equal(t, fullOrder, calls[i*len(fullOrder):(i+1)*len(fullOrder)])
	}
	assert.Len(t, srv.roots, 3)
}

func TestBuild_ServeSkippedWithoutServeFlag(t *testing.T) {
	log := &hookLog{}
	b := newBuilder(t, newProject(t), func(c *config.Config) { log.install(c, nil) })

	_, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.NotContains(t, log.snapshot(), "serveBefore")
	assert.NotContains(t, log.snapshot(), "serveAfter")
}

func TestBuild_ServeWithoutServerIsStageError(t *testing.T) {
	b := newBuilder(t, newProject(t), nil)
	report, err := b.Build(context.Background(), true, true)
	require.Error(t, err)
	assert.True(t, IsStageError(err))
	assert.Equal(t, StageServe, report.FailedStep)
}

func TestBuild_HookFailureStopsBuild(t *testing.T) {
	dir := newProject(t)
	log := &hookLog{}
	boom := errors.New("boom")
	b := newBuilder(t, dir, func(c *config.Config) {
		log.install(c, map[hooks.Checkpoint]hooks.Func{
			hooks.LayoutsBefore: func(context.Context, engine.Pipeline) error { return boom },
		})
	})

	report, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsHookError(err))
	assert.ErrorIs(t, err, boom)
	cp, ok := FailedCheckpoint(err)
	require.True(t, ok)
	assert.Equal(t, hooks.LayoutsBefore, cp)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, "layoutsBefore", report.FailedStep)
	assert.Equal(t, fullOrder[:6], log.snapshot())
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestBuild_PanickingHookFailsBuild(t *testing.T) {
	dir := newProject(t)
	b := newBuilder(t, dir, func(c *config.Config) {
		c.Hooks.Set(hooks.CSSBefore, func(context.Context, engine.Pipeline) error {
			panic("stylesheet exploded")
		})
	})

	report, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsHookError(err))
	assert.Contains(t, err.Error(), "panic: stylesheet exploded")
	cp, ok := FailedCheckpoint(err)
	require.True(t, ok)
	assert.Equal(t, hooks.CSSBefore, cp)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestBuild_HooksReceivePipelineHandle(t *testing.T) {
	dir := newProject(t)
	b := newBuilder(t, dir, func(c *config.Config) {
		c.Hooks.Set(hooks.ContentsAfter, func(_ context.Context, p engine.Pipeline) error {
			p.Register(engine.Func("extra", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
				files["extra.txt"] = &engine.File{Contents: []byte("from hook")}
				return nil
			}))
			return nil
		})
	})

	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.Contains(t, report.Units, "extra")
	assert.FileExists(t, filepath.Join(dir, "build", "extra.txt"))
}

func TestBuild_SupersededBeforeExecution(t *testing.T) {
	dir := newProject(t)
	log := &hookLog{}
	var b *Builder
	var inner *Report
	var innerErr error
	nested := false
	after := -1
	b = newBuilder(t, dir, func(c *config.Config) {
		log.install(c, map[hooks.Checkpoint]hooks.Func{
			hooks.ContentsBefore: func(ctx context.Context, _ engine.Pipeline) error {
				if nested {
					return nil
				}
				nested = true
				inner, innerErr = b.Build(ctx, false, false)
				after = len(log.snapshot())
				return nil
			},
		})
	})

	outer, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsSuperseded(err))
	assert.Equal(t, OutcomeSuperseded, outer.Outcome)
	assert.Equal(t, StageContents, outer.FailedStep)
	assert.NotContains(t, outer.Units, "markdown")

	require.NoError(t, innerErr)
	assert.Equal(t, OutcomeSuccess, inner.Outcome)
	assert.Equal(t, uint64(2), inner.Generation)
	assert.Equal(t, after, len(log.snapshot()), "superseded build invoked hooks after being overtaken")
}

// gatedPipeline blocks in Execute until released.
type gatedPipeline struct {
	engine.Pipeline
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPipeline) Execute(ctx context.Context) error {
	close(g.entered)
	<-g.release
	return g.Pipeline.Execute(ctx)
}

func TestBuild_SupersededDuringExecution(t *testing.T) {
	dir := newProject(t)
	gate := &gatedPipeline{entered: make(chan struct{}), release: make(chan struct{})}
	var mu sync.Mutex
	created := 0
	b := newBuilder(t, dir, nil).WithPipelineFactory(func(opts engine.Options) (engine.Pipeline, error) {
		p, err := engine.New(opts)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		created++
		if created == 1 {
			gate.Pipeline = p
			return gate, nil
		}
		return p, nil
	})

	type result struct {
		report *Report
		err    error
	}
	first := make(chan result, 1)
	go func() {
		r, err := b.Build(context.Background(), false, true)
		first <- result{r, err}
	}()
	<-gate.entered

	second, err := b.Build(context.Background(), false, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, second.Outcome)

	// Anything the overtaken build would write now differs from the current output.
	marker := filepath.Join(dir, "build", "marker.txt")
	writeFile(t, marker, "second")
	writeFile(t, filepath.Join(dir, "site", "late.md"), "# Late\n")

	close(gate.release)
	r := <-first
	require.Error(t, r.err)
	assert.True(t, IsSuperseded(r.err))
	assert.False(t, IsExecutionError(r.err))
	assert.Equal(t, OutcomeSuperseded, r.report.Outcome)
	assert.Equal(t, StepExecute, r.report.FailedStep)
	assert.True(t, b.Coordinator().IsCurrent(second.Generation))

	assert.FileExists(t, marker, "overtaken build cleaned the destination")
	assert.NoFileExists(t, filepath.Join(dir, "build", "late.html"), "overtaken build wrote output")
	assert.FileExists(t, filepath.Join(dir, "build", "index.html"))
}

func TestBuild_MissingModulesFallBack(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "default-metadata.yaml"), "key: [unclosed\n")
	b := newBuilder(t, dir, nil)

	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.NotContains(t, report.Units, "defaults")
	assert.NotContains(t, report.Units, "redirects")
	assert.Contains(t, report.Units, "styles")
}

func TestBuild_PartiallyValidModuleFallsBack(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "style-post-processor.yaml"), "- exit 3\n- {bad: entry}\n")
	b := newBuilder(t, dir, nil)

	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	css, err := os.ReadFile(filepath.Join(dir, "build", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}\n", string(css))
}

func TestBuild_OptionalModules(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "site", "plain.md"), "plain\n")
	writeFile(t, filepath.Join(dir, "default-metadata.yaml"), "layout: page\n")
	writeFile(t, filepath.Join(dir, "redirects.json"), `{"/old": "/index.html"}`)
	writeFile(t, filepath.Join(dir, "style-post-processor.yaml"), "- tr a-z A-Z\n")
	b := newBuilder(t, dir, nil)

	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.Contains(t, report.Units, "defaults")
	assert.Contains(t, report.Units, "redirects")

	plain, err := os.ReadFile(filepath.Join(dir, "build", "plain.html"))
	require.NoError(t, err)
	assert.Equal(t, "<body><p>plain</p>\n</body>", string(plain))
	css, err := os.ReadFile(filepath.Join(dir, "build", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "BODY{}\n", string(css))
	assert.FileExists(t, filepath.Join(dir, "build", "old", "index.html"))
}

func TestBuild_ModulesReloadedEveryBuild(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "redirects.yaml"), "/first: /index.html\n")
	b := newBuilder(t, dir, nil)

	_, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "build", "first", "index.html"))

	writeFile(t, filepath.Join(dir, "redirects.yaml"), "/second: /index.html\n")
	_, err = b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "build", "second", "index.html"))
	assert.NoFileExists(t, filepath.Join(dir, "build", "first", "index.html"))
}

func TestBuild_StageRegistrationError(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "default-metadata.yaml"), "- pattern: \"[bad\"\n  defaults:\n    a: 1\n")
	b := newBuilder(t, dir, nil)

	report, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsStageError(err))
	assert.Equal(t, StageMetadata, report.FailedStep)
}

func TestBuild_ExecutionError(t *testing.T) {
	dir := t.TempDir()
	b := newBuilder(t, dir, nil)
	report, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.Equal(t, StepExecute, report.FailedStep)
}

func TestBuild_PostProcess(t *testing.T) {
	dir := newProject(t)
	called := false
	b := newBuilder(t, dir, func(c *config.Config) {
		c.PostProcess = func(context.Context) error { called = true; return nil }
		c.PostProcessCommand = "touch should-not-run"
	})
	_, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoFileExists(t, filepath.Join(dir, "should-not-run"))

	b = newBuilder(t, dir, func(c *config.Config) {
		c.PostProcessCommand = `printf %s "$SITEBUILDER_DESTINATION" > post.txt`
	})
	_, err = b.Build(context.Background(), false, true)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "post.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build"), string(got))

	b = newBuilder(t, dir, func(c *config.Config) {
		c.PostProcess = func(context.Context) error { return errors.New("nope") }
	})
	report, err := b.Build(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, IsPostProcessError(err))
	assert.Equal(t, StepPostProcess, report.FailedStep)
}

func TestBuild_CanceledContext(t *testing.T) {
	b := newBuilder(t, newProject(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx, false, true)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuild_RecordsHistory(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(eventstore.MemoryDSN)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	b := newBuilder(t, newProject(t), nil).WithHistory(store)
	report, err := b.Build(context.Background(), false, true)
	require.NoError(t, err)

	records, err := store.ForBuild(context.Background(), report.BuildID)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, eventstore.TypeBuildStarted, records[0].Kind)
	assert.Equal(t, eventstore.TypeBuildCompleted, records[len(records)-1].Kind)

	summaries := eventstore.Summarize(records, 0)
	require.Len(t, summaries, 1)
	assert.Equal(t, eventstore.StatusSucceeded, summaries[0].Status)
	assert.Equal(t, len(report.Steps), summaries[0].Steps)
}

func TestCoordinator(t *testing.T) {
	c := NewCoordinator()
	g1 := c.Begin()
	require.NoError(t, c.Check(g1, "x"))
	g2 := c.Begin()
	assert.False(t, c.IsCurrent(g1))
	assert.True(t, c.IsCurrent(g2))
	err := c.Check(g1, "layouts")
	require.Error(t, err)
	assert.True(t, IsSuperseded(err))
	assert.False(t, IsHookError(err))
}
