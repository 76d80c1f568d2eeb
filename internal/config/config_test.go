package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultSource, c.Source)
	assert.Equal(t, DefaultDestination, c.Destination)
	assert.True(t, filepath.IsAbs(c.BaseDirectory))
	assert.Equal(t, DefaultWatch, c.Watch)
	assert.Equal(t, "layouts", c.Layouts.Directory)
	assert.Equal(t, "-before.html", c.Layouts.BeforeSuffix)
	assert.Equal(t, RefreshAll, c.LiveReload.Refresh)
	assert.Equal(t, DefaultPort, c.Server.Port)
	require.NoError(t, c.Validate())
}

func TestLoad_ParsesYAMLAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITE_DEST", "public")
	path := filepath.Join(dir, "sitebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: content
destination: ${SITE_DEST}
clean: true
watch: ["content/**", "*.yaml"]
hooks:
  cssAfter: "echo done"
livereload:
  refresh: debounced
  quiet_window: 300ms
watcher:
  rebuild_interval: 1m
history:
  path: history.db
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "content", c.Source)
	assert.Equal(t, "public", c.Destination)
	assert.True(t, c.Clean)
	assert.Equal(t, dir, c.BaseDirectory)
	assert.Equal(t, []string{"content/**", "*.yaml"}, c.Watch)
	assert.Equal(t, "echo done", c.HookCommands["cssAfter"])
	assert.Equal(t, RefreshDebounced, c.LiveReload.Refresh)
	assert.Equal(t, 300*time.Millisecond, c.LiveReload.QuietWindow)
	assert.Equal(t, time.Minute, c.Watcher.RebuildInterval)
	assert.Equal(t, "history.db", c.History.Path)
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITE_SRC", "from-process")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITE_SRC=from-file\nSITE_DST_FILE=out\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("SITE_DST_FILE") })
	path := filepath.Join(dir, "sitebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: ${SITE_SRC}\ndestination: ${SITE_DST_FILE}\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-process", c.Source)
	assert.Equal(t, "out", c.Destination)
}

func TestLoad_RelativeBaseDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_directory: project\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "project"), c.BaseDirectory)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sourcee: typo\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), c.BaseDirectory)
}

func TestLoadOrDefault_Missing(t *testing.T) {
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.NoError(t, err)
	wd, _ := os.Getwd()
	assert.Equal(t, wd, c.BaseDirectory)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"same source and destination", func(c *Config) { c.Destination = c.Source }},
		{"bad watch pattern", func(c *Config) { c.Watch = []string{"[oops"} }},
		{"bad ignore pattern", func(c *Config) { c.Ignore = []string{"[oops"} }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad refresh", func(c *Config) { c.LiveReload.Refresh = "sometimes" }},
		{"negative debounce", func(c *Config) { c.Watcher.Debounce = -time.Second }},
		{"unknown hook", func(c *Config) { c.HookCommands = map[string]string{"cssDuring": "true"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
}

func TestNormalized_DoesNotMutateAndResolvesHooks(t *testing.T) {
	goHook := func(context.Context, engine.Pipeline) error { return nil }
	c := &Config{
		BaseDirectory: t.TempDir(),
		HookCommands:  map[string]string{"cssAfter": "true", "buildBefore": "true"},
	}
	c.Hooks.Set(hooks.BuildBefore, goHook)

	n, err := c.Normalized()
	require.NoError(t, err)
	assert.Empty(t, c.Source, "original must stay untouched")
	assert.Equal(t, 1, c.Hooks.Len())
	assert.Equal(t, DefaultSource, n.Source)
	assert.Equal(t, 2, n.Hooks.Len())
	assert.NotNil(t, n.Hooks.Get(hooks.CSSAfter))
}

func TestPath(t *testing.T) {
	c := &Config{BaseDirectory: "/srv/site"}
	assert.Equal(t, "/srv/site/build", c.Path("./build"))
	assert.Equal(t, "/abs", c.Path("/abs"))
}

func TestNormalized_RefreshPolicyIsCaseInsensitive(t *testing.T) {
	c, err := (&Config{BaseDirectory: t.TempDir(), LiveReload: LiveReloadConfig{Refresh: " Debounced "}}).Normalized()
	require.NoError(t, err)
	assert.Equal(t, RefreshDebounced, c.LiveReload.Refresh)
	assert.Equal(t, DefaultQuietWindow, c.LiveReload.QuietWindow)
}
