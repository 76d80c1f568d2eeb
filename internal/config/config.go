// Package config holds the build configuration and its YAML loader.
package config

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
)

// Config is the user-supplied build configuration. The build pipeline treats
// it as read-only; use Normalized to obtain a defaulted, validated copy.
type Config struct {
	Source        string   `yaml:"source,omitempty"`
	Destination   string   `yaml:"destination,omitempty"`
	BaseDirectory string   `yaml:"base_directory,omitempty"`
	Serve         bool     `yaml:"serve,omitempty"`
	Clean         bool     `yaml:"clean,omitempty"`  // also clean on watch-mode rebuilds
	Watch         []string `yaml:"watch,omitempty"`  // doublestar globs relative to BaseDirectory
	Ignore        []string `yaml:"ignore,omitempty"` // doublestar globs relative to Source

	// HookCommands maps checkpoint names (e.g. "cssAfter") to shell command lines.
	HookCommands       map[string]string `yaml:"hooks,omitempty"`
	PostProcessCommand string            `yaml:"post_process,omitempty"`

	Layouts    LayoutsConfig    `yaml:"layouts,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	LiveReload LiveReloadConfig `yaml:"livereload,omitempty"`
	Watcher    WatcherConfig    `yaml:"watcher,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
	History    HistoryConfig    `yaml:"history,omitempty"`
	Notify     NotifyConfig     `yaml:"notify,omitempty"`

	// Hooks are Go callbacks; a callback wins over a HookCommands entry for the same checkpoint.
	Hooks hooks.Set `yaml:"-"`
	// PostProcess runs after the pipeline has been executed; it wins over PostProcessCommand.
	PostProcess func(ctx context.Context) error `yaml:"-"`
}

// LayoutsConfig configures the before/after layout wrapper.
type LayoutsConfig struct {
	Directory    string `yaml:"directory,omitempty"`
	Property     string `yaml:"property,omitempty"`
	BeforeSuffix string `yaml:"before_suffix,omitempty"`
	AfterSuffix  string `yaml:"after_suffix,omitempty"`
	Match        string `yaml:"match,omitempty"`
}

// ServerConfig configures the local preview server started by the serve stage.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// RefreshPolicy controls how successful rebuilds turn into browser refreshes.
type RefreshPolicy string

const (
	// RefreshAll sends one global refresh per successful rebuild.
	RefreshAll RefreshPolicy = "all"
	// RefreshDebounced coalesces refreshes that fall within the quiet window.
	RefreshDebounced RefreshPolicy = "debounced"
)

// LiveReloadConfig configures browser refresh notifications in watch mode.
type LiveReloadConfig struct {
	Disabled    bool          `yaml:"disabled,omitempty"`
	Refresh     RefreshPolicy `yaml:"refresh,omitempty"`
	QuietWindow time.Duration `yaml:"quiet_window,omitempty"`
}

// WatcherConfig tunes the filesystem watcher.
type WatcherConfig struct {
	// Debounce coalesces event bursts; zero starts one build per event.
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// RebuildInterval schedules periodic rebuilds in watch mode; zero disables.
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"`
}

// MetricsConfig enables Prometheus metrics on the preview server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// HistoryConfig enables the SQLite build history. An empty Path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig configures additional refresh notifiers.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}
