package config

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/hooks"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func (c *Config) Validate() error {
	if c.Source == "" || c.Destination == "" {
		return ferrors.ValidationError("source and destination are required").Build()
	}
	if c.Path(c.Source) == c.Path(c.Destination) {
		return ferrors.ValidationError("source and destination must differ").
			WithContext("path", c.Path(c.Source)).Build()
	}
	for _, p := range c.Watch {
		if !doublestar.ValidatePattern(p) {
			return ferrors.ValidationError("invalid watch pattern").WithContext("pattern", p).Build()
		}
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return ferrors.ValidationError("invalid ignore pattern").WithContext("pattern", p).Build()
		}
	}
	if !doublestar.ValidatePattern(c.Layouts.Match) {
		return ferrors.ValidationError("invalid layouts match pattern").WithContext("pattern", c.Layouts.Match).Build()
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return ferrors.ValidationError("server port out of range").WithContext("port", c.Server.Port).Build()
	}
	if _, err := refreshPolicies.Parse(string(c.LiveReload.Refresh)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "unknown livereload refresh policy").
			WithContext("refresh", string(c.LiveReload.Refresh)).Build()
	}
	if c.Watcher.Debounce < 0 || c.Watcher.RebuildInterval < 0 {
		return ferrors.ValidationError("watcher durations must not be negative").Build()
	}
	for _, name := range sortedKeys(c.HookCommands) {
		if _, ok := hooks.ParseCheckpoint(name); !ok {
			return ferrors.ValidationError("unknown hook checkpoint").WithContext("checkpoint", name).Build()
		}
	}
	return nil
}

// Normalized returns a defaulted, validated copy of c with shell hooks
// resolved into the hook set. c itself is not modified.
func (c *Config) Normalized() (*Config, error) {
	out := *c
	out.Watch = append([]string(nil), c.Watch...)
	out.Ignore = append([]string(nil), c.Ignore...)
	if err := out.ApplyDefaults(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "apply defaults").Build()
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(c.HookCommands) {
		cp, _ := hooks.ParseCheckpoint(name)
		out.Hooks.SetIfEmpty(cp, hooks.Command(cp, c.HookCommands[name]))
	}
	return &out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
