package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

// Default values applied by ApplyDefaults.
const (
	DefaultSource        = "./site"
	DefaultDestination   = "./build"
	DefaultLayoutsDir    = "layouts"
	DefaultHost          = "localhost"
	DefaultPort          = 8080
	DefaultMetricsPath   = "/metrics"
	DefaultNATSSubject   = "sitebuilder.refresh"
	DefaultQuietWindow   = 250 * time.Millisecond
	defaultLayoutProp    = "layout"
	defaultBeforeSuffix  = "-before.html"
	defaultAfterSuffix   = "-after.html"
	defaultLayoutPattern = "**/*.html"
)

var refreshPolicies = normalization.New("refresh policy", map[string]RefreshPolicy{
	string(RefreshAll):       RefreshAll,
	string(RefreshDebounced): RefreshDebounced,
})

// DefaultWatch is the glob set observed in watch mode when none is configured.
var DefaultWatch = []string{
	"*.yaml",
	"*.yml",
	"*.json",
	".env",
	"layouts/**",
	"site/**",
	"styles/**",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	_ = c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields. It fails only when the working directory
// cannot be determined.
func (c *Config) ApplyDefaults() error {
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.Destination == "" {
		c.Destination = DefaultDestination
	}
	if c.BaseDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		c.BaseDirectory = wd
	} else if !filepath.IsAbs(c.BaseDirectory) {
		abs, err := filepath.Abs(c.BaseDirectory)
		if err != nil {
			return fmt.Errorf("resolve base directory: %w", err)
		}
		c.BaseDirectory = abs
	}
	if len(c.Watch) == 0 {
		c.Watch = append([]string(nil), DefaultWatch...)
	}

	applyLayoutDefaults(&c.Layouts)

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.LiveReload.Refresh == "" {
		c.LiveReload.Refresh = RefreshAll
	} else if p, err := refreshPolicies.Parse(string(c.LiveReload.Refresh)); err == nil {
		c.LiveReload.Refresh = p
	}
	if c.LiveReload.Refresh == RefreshDebounced && c.LiveReload.QuietWindow <= 0 {
		c.LiveReload.QuietWindow = DefaultQuietWindow
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNATSSubject
	}
	return nil
}

func applyLayoutDefaults(l *LayoutsConfig) {
	if l.Directory == "" {
		l.Directory = DefaultLayoutsDir
	}
	if l.Property == "" {
		l.Property = defaultLayoutProp
	}
	if l.BeforeSuffix == "" {
		l.BeforeSuffix = defaultBeforeSuffix
	}
	if l.AfterSuffix == "" {
		l.AfterSuffix = defaultAfterSuffix
	}
	if l.Match == "" {
		l.Match = defaultLayoutPattern
	}
}

// Path resolves p against the base directory.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.BaseDirectory, p)
}
