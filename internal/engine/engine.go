// Package engine is the site-generation engine the build orchestrator drives.
//
// A Site accumulates processing units through Register and runs them exactly
// once in Execute: the source tree is read into memory, every unit transforms
// the in-memory file set in registration order, and the result is written to
// the destination directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// File is a single document held in memory during a build.
type File struct {
	Contents    []byte
	Mode        fs.FileMode
	Metadata    map[string]any
	Frontmatter []byte // raw YAML front matter as read from disk, if any
}

// Files maps slash-separated paths relative to the source directory to files.
type Files map[string]*File

// Unit is one processing step registered on a pipeline.
type Unit interface {
	Name() string
	Process(ctx context.Context, files Files, p Pipeline) error
}

// Pipeline is the handle stages and hooks register work on.
type Pipeline interface {
	// Register queues a unit. Nothing runs until Execute.
	Register(u Unit, opts ...RegisterOption)
	// Execute runs all queued units once and writes the result.
	Execute(ctx context.Context) error

	Directory() string
	Source() string
	Destination() string
	Metadata() map[string]any
	Units() []string
}

// UnitFunc adapts a function to the Unit interface.
type UnitFunc struct {
	Label string
	Fn    func(ctx context.Context, files Files, p Pipeline) error
}

func (u UnitFunc) Name() string { return u.Label }

func (u UnitFunc) Process(ctx context.Context, files Files, p Pipeline) error {
	return u.Fn(ctx, files, p)
}

// Func wraps fn as a named unit.
func Func(name string, fn func(ctx context.Context, files Files, p Pipeline) error) Unit {
	return UnitFunc{Label: name, Fn: fn}
}

// RegisterOption customizes how a unit is registered.
type RegisterOption func(*registration)

// Match restricts the files a unit sees to those matching any of the
// doublestar patterns. Files the unit adds or deletes are merged back.
func Match(patterns ...string) RegisterOption {
	return func(r *registration) { r.match = append(r.match, patterns...) }
}

// Named overrides the unit name used in logs and Units().
func Named(name string) RegisterOption {
	return func(r *registration) { r.name = name }
}

type registration struct {
	unit  Unit
	name  string
	match []string
}

// Options configures a Site.
type Options struct {
	Directory   string // base directory; relative Source/Destination resolve against it
	Source      string
	Destination string
	Clean       bool
	Metadata    map[string]any
	Ignore      []string // doublestar patterns (relative to Source) skipped while reading

	// Current, when set, is consulted after the units ran. A false result
	// abandons the build with ErrNotCurrent before the destination is touched.
	Current func() bool
	// WriteLock, when set, is held while Current is checked and the output
	// written, so concurrent sites sharing it never interleave their writes.
	WriteLock sync.Locker
}

// ErrNotCurrent is returned by Execute when Options.Current reported the
// build as overtaken before its output was written.
var ErrNotCurrent = errors.New("pipeline is no longer current")

// Site is the default Pipeline implementation.
type Site struct {
	opts     Options
	dir      string
	src      string
	dst      string
	metadata map[string]any

	mu       sync.Mutex
	units    []registration
	executed bool
}

var _ Pipeline = (*Site)(nil)

// New constructs a Site. Paths are resolved immediately so later changes to
// the working directory do not affect a build in progress.
func New(opts Options) (*Site, error) {
	dir := opts.Directory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	md := make(map[string]any, len(opts.Metadata))
	maps.Copy(md, opts.Metadata)
	return &Site{
		opts:     opts,
		dir:      dir,
		src:      resolve(dir, opts.Source),
		dst:      resolve(dir, opts.Destination),
		metadata: md,
	}, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

func (s *Site) Directory() string        { return s.dir }
func (s *Site) Source() string           { return s.src }
func (s *Site) Destination() string      { return s.dst }
func (s *Site) Metadata() map[string]any { return s.metadata }

// Register queues u. Invalid Match patterns surface from Execute.
func (s *Site) Register(u Unit, opts ...RegisterOption) {
	r := registration{unit: u, name: u.Name()}
	for _, o := range opts {
		o(&r)
	}
	s.mu.Lock()
	s.units = append(s.units, r)
	s.mu.Unlock()
}

// Units returns the names of registered units in order.
func (s *Site) Units() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.units))
	for i, r := range s.units {
		names[i] = r.name
	}
	return names
}

// Execute reads the source tree, runs every registered unit and writes the result.
// A Site can be executed once.
func (s *Site) Execute(ctx context.Context) error {
	s.mu.Lock()
	if s.executed {
		s.mu.Unlock()
		return fmt.Errorf("pipeline already executed")
	}
	s.executed = true
	units := append([]registration(nil), s.units...)
	s.mu.Unlock()

	files, err := s.read(ctx)
	if err != nil {
		return err
	}
	for _, r := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		t0 := time.Now()
		if err := s.run(ctx, r, files); err != nil {
			return fmt.Errorf("unit %s: %w", r.name, err)
		}
		slog.Debug("Unit complete", logfields.Unit(r.name), logfields.DurationMS(float64(time.Since(t0).Microseconds())/1000))
	}
	return s.commit(ctx, files)
}

func (s *Site) commit(ctx context.Context, files Files) error {
	if l := s.opts.WriteLock; l != nil {
		l.Lock()
		defer l.Unlock()
	}
	if s.opts.Current != nil && !s.opts.Current() {
		return ErrNotCurrent
	}
	return s.write(ctx, files)
}

func (s *Site) run(ctx context.Context, r registration, files Files) error {
	if len(r.match) == 0 {
		return r.unit.Process(ctx, files, s)
	}
	view := make(Files)
	for name, f := range files {
		ok, err := matchAny(r.match, name)
		if err != nil {
			return err
		}
		if ok {
			view[name] = f
		}
	}
	before := make([]string, 0, len(view))
	for name := range view {
		before = append(before, name)
	}
	if err := r.unit.Process(ctx, view, s); err != nil {
		return err
	}
	for _, name := range before {
		if _, kept := view[name]; !kept {
			delete(files, name)
		}
	}
	maps.Copy(files, view)
	return nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("match %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
