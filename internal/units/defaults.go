package units

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Strategies for DefaultsSet.
const (
	StrategyKeep      = "keep"
	StrategyOverwrite = "overwrite"
)

// DefaultPattern selects every file.
const DefaultPattern = "**/*"

// DefaultsSet assigns default metadata to files matching Pattern. Keys may be
// dotted paths ("author.name") addressing nested maps.
type DefaultsSet struct {
	Pattern  []string
	Defaults map[string]any
	Strategy string
}

// ParseDefaults interprets a default-metadata module. A plain map applies to
// every file with the keep strategy, whatever its keys are called; only a
// list holds explicit sets, each with optional pattern (string or list),
// defaults and strategy keys.
func ParseDefaults(raw any) ([]DefaultsSet, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []DefaultsSet{{Pattern: []string{DefaultPattern}, Defaults: v, Strategy: StrategyKeep}}, nil
	case []any:
		sets := make([]DefaultsSet, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("defaults set %d: expected a map, got %T", i, item)
			}
			s, err := parseSet(m)
			if err != nil {
				return nil, fmt.Errorf("defaults set %d: %w", i, err)
			}
			sets = append(sets, s)
		}
		return sets, nil
	default:
		return nil, fmt.Errorf("default metadata must be a map or a list, got %T", raw)
	}
}

func parseSet(m map[string]any) (DefaultsSet, error) {
	s := DefaultsSet{Strategy: StrategyKeep}
	switch p := m["pattern"].(type) {
	case nil:
		s.Pattern = []string{DefaultPattern}
	case string:
		s.Pattern = []string{p}
	case []any:
		for _, e := range p {
			str, ok := e.(string)
			if !ok {
				return s, fmt.Errorf("pattern entries must be strings, got %T", e)
			}
			s.Pattern = append(s.Pattern, str)
		}
	default:
		return s, fmt.Errorf("pattern must be a string or list, got %T", p)
	}
	if d, ok := m["defaults"].(map[string]any); ok {
		s.Defaults = d
	}
	if st, ok := m["strategy"].(string); ok && st != "" {
		s.Strategy = st
	}
	return s, nil
}

// Defaults returns a unit applying sets in order.
func Defaults(sets []DefaultsSet) (engine.Unit, error) {
	for i := range sets {
		if sets[i].Strategy == "" {
			sets[i].Strategy = StrategyKeep
		}
		if sets[i].Strategy != StrategyKeep && sets[i].Strategy != StrategyOverwrite {
			return nil, fmt.Errorf("defaults set %d: unknown strategy %q", i, sets[i].Strategy)
		}
		if len(sets[i].Pattern) == 0 {
			sets[i].Pattern = []string{DefaultPattern}
		}
		for _, p := range sets[i].Pattern {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("defaults set %d: invalid pattern %q", i, p)
			}
		}
	}
	return engine.Func("defaults", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for _, set := range sets {
			matched := 0
			for name, f := range files {
				if !matchesAny(set.Pattern, name) {
					continue
				}
				matched++
				if f.Metadata == nil {
					f.Metadata = map[string]any{}
				}
				for key, value := range set.Defaults {
					if set.Strategy == StrategyOverwrite || isEmpty(getPath(f.Metadata, key)) {
						setPath(f.Metadata, key, value)
					}
				}
			}
			if matched == 0 {
				slog.Debug("No files matched defaults pattern", slog.Any("pattern", set.Pattern))
			}
		}
		return nil
	}), nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, name) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []byte:
		return strings.TrimSpace(string(t)) == ""
	default:
		return false
	}
}

func getPath(m map[string]any, key string) any {
	parts := strings.Split(key, ".")
	cur := any(m)
	for _, part := range parts {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[part]
	}
	return cur
}

func setPath(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
