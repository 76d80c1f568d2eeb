// Package modules loads optional, user-supplied configuration modules such as
// default-metadata or redirects from the project directory.
package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Well-known module names.
const (
	DefaultMetadata    = "default-metadata"
	StylePostProcessor = "style-post-processor"
	Redirects          = "redirects"
)

// extensions are tried in order when a module name carries none.
var extensions = []string{".yaml", ".yml", ".json"}

// Loader resolves module names relative to a directory. It keeps no cache;
// every Load reads the current on-disk state.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Resolve returns the file backing name, or a module error when none exists.
func (l *Loader) Resolve(name string) (string, error) {
	base := name
	if !filepath.IsAbs(base) {
		base = filepath.Join(l.dir, name)
	}
	candidates := []string{base}
	if filepath.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, base+ext)
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", ferrors.ModuleError("module not found").
		WithContext("module", name).
		WithContext("dir", l.dir).
		Build()
}

// Load decodes module name into out, replacing its value. out is left
// untouched on failure. Any failure is a module error; callers are expected
// to fall back to a default.
func (l *Loader) Load(ctx context.Context, name string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ferrors.InternalError("module target must be a non-nil pointer").WithContext("module", name).Build()
	}
	slog.Debug("Trying to load module", logfields.Module(name))
	path, err := l.Resolve(name)
	if err != nil {
		slog.Debug("Module unavailable", logfields.Module(name), logfields.Error(err))
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryModule, "read module").
			Warning().WithContext("module", name).Build()
	}
	// Decoders may fill part of the target before failing, so decode into a
	// fresh value and only commit it once the whole module parsed.
	scratch := reflect.New(rv.Elem().Type())
	if err := decode(path, data, scratch.Interface()); err != nil {
		slog.Debug("Module failed to decode", logfields.Module(name), logfields.Error(err))
		return ferrors.WrapError(err, ferrors.CategoryModule, "decode module").
			Warning().WithContext("module", name).WithContext("path", path).Build()
	}
	rv.Elem().Set(scratch.Elem())
	slog.Debug("Loaded module", logfields.Module(name), logfields.Path(path))
	return nil
}

func decode(path string, data []byte, out any) error {
	if filepath.Ext(path) == ".json" {
		return json.Unmarshal(data, out)
	}
	err := yaml.NewDecoder(bytes.NewReader(data)).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Session returns a cache scoped to a single build. Discard it when the build ends.
func (l *Loader) Session() *Session {
	return &Session{loader: l, cache: map[string]cached{}}
}

type cached struct {
	value reflect.Value
	err   error
}

// Session memoizes module loads for the lifetime of one build so stages that
// ask for the same module observe the same value.
type Session struct {
	loader *Loader
	mu     sync.Mutex
	cache  map[string]cached
}

// Load behaves like Loader.Load but serves repeated requests for the same
// module and target type from the session cache.
func (s *Session) Load(ctx context.Context, name string, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ferrors.InternalError("module target must be a non-nil pointer").WithContext("module", name).Build()
	}
	key := fmt.Sprintf("%s|%s", name, rv.Type())

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[key]; ok {
		if c.err == nil {
			rv.Elem().Set(c.value)
		}
		return c.err
	}
	err := s.loader.Load(ctx, name, out)
	if ctx.Err() != nil {
		return err
	}
	entry := cached{err: err}
	if err == nil {
		entry.value = reflect.New(rv.Elem().Type()).Elem()
		entry.value.Set(rv.Elem())
	}
	s.cache[key] = entry
	return err
}

// IsNotConfigured reports whether err means the optional module is absent or unusable.
func IsNotConfigured(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryModule)
}
