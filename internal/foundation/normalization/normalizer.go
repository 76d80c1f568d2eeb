// Package normalization maps loosely written configuration strings onto
// closed sets of values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps case- and space-insensitive names to values of T.
type Normalizer[T comparable] struct {
	name   string
	values map[string]T
	keys   []string
}

// New creates a normalizer for the named setting.
func New[T comparable](name string, values map[string]T) *Normalizer[T] {
	n := &Normalizer[T]{name: name, values: make(map[string]T, len(values))}
	for k, v := range values {
		key := normalize(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	sort.Strings(n.keys)
	return n
}

// Parse returns the value for raw, or an error listing the valid names.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if v, ok := n.values[normalize(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.keys, ", "))
}

// Keys returns the valid names, sorted.
func (n *Normalizer[T]) Keys() []string {
	return append([]string(nil), n.keys...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
