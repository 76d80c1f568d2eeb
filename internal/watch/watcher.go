package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Watcher reports changes to files matching a set of globs relative to a base
// directory. Anything under the ignored directory (the build destination) is
// never reported.
type Watcher struct {
	fsw      *fsnotify.Watcher
	base     string
	exclude  string
	patterns []string
	debounce time.Duration

	mu        sync.Mutex
	recursive []string // roots under which new directories are watched too
}

// NewWatcher validates patterns and registers the directories they can match.
// Missing directories are skipped.
func NewWatcher(base, exclude string, patterns []string, debounce time.Duration) (*Watcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, ferrors.ValidationError("invalid watch pattern").WithContext("pattern", p).Build()
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "create file watcher").Build()
	}
	w := &Watcher{
		fsw:      fsw,
		base:     filepath.Clean(base),
		exclude:  filepath.Clean(exclude),
		debounce: debounce,
	}
	for _, p := range patterns {
		w.patterns = append(w.patterns, strings.TrimPrefix(filepath.ToSlash(p), "./"))
	}
	for _, r := range roots(w.base, w.patterns) {
		if err := w.addRoot(r); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

type root struct {
	dir       string
	recursive bool
}

// roots derives the directories to watch from the static prefix of each glob.
func roots(base string, patterns []string) []root {
	seen := map[string]int{}
	var out []root
	for _, p := range patterns {
		prefix, rest := doublestar.SplitPattern(p)
		r := root{
			dir:       filepath.Join(base, filepath.FromSlash(prefix)),
			recursive: strings.Contains(rest, "/") || strings.Contains(rest, "**"),
		}
		if i, ok := seen[r.dir]; ok {
			out[i].recursive = out[i].recursive || r.recursive
			continue
		}
		seen[r.dir] = len(out)
		out = append(out, r)
	}
	return out
}

func (w *Watcher) addRoot(r root) error {
	st, err := os.Stat(r.dir)
	if err != nil || !st.IsDir() {
		slog.Debug("Watch root not present", logfields.Path(r.dir))
		return nil
	}
	if !r.recursive {
		if err := w.fsw.Add(r.dir); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryWatch, "watch directory").WithContext("dir", r.dir).Build()
		}
		return nil
	}
	w.mu.Lock()
	w.recursive = append(w.recursive, r.dir)
	w.mu.Unlock()
	w.addDirsRecursive(r.dir)
	return nil
}

func (w *Watcher) addDirsRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.excluded(path) || (path != dir && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("watch add failed", slog.String("dir", path), logfields.Error(err))
		}
		return nil
	})
}

func (w *Watcher) underRecursiveRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.recursive {
		if within(path, r) {
			return true
		}
	}
	return false
}

// Watched returns the directories currently registered with fsnotify.
func (w *Watcher) Watched() []string {
	return w.fsw.WatchList()
}

// Run delivers matching changes to onChange until ctx is done. With a
// non-zero debounce, bursts within the window produce one call carrying the
// last path.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer func() { _ = w.fsw.Close() }()

	deliver := onChange
	if w.debounce > 0 {
		var stop func()
		deliver, stop = debounced(w.debounce, onChange)
		defer stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handle(ev); ok {
				slog.Debug("Change detected", logfields.Path(rel), slog.String("op", ev.Op.String()))
				deliver(rel)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("watcher event overflow; triggering rebuild", logfields.Error(err))
				deliver("")
				continue
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

// handle filters one event and returns the base-relative path to report.
func (w *Watcher) handle(ev fsnotify.Event) (string, bool) {
	if ev.Op == fsnotify.Chmod {
		return "", false
	}
	path := filepath.Clean(ev.Name)
	if w.excluded(path) {
		return "", false
	}
	if ev.Has(fsnotify.Create) && w.underRecursiveRoot(path) {
		if st, err := os.Stat(path); err == nil && st.IsDir() {
			w.addDirsRecursive(path)
		}
	}
	rel, err := filepath.Rel(w.base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !w.Match(rel) {
		return "", false
	}
	return rel, true
}

// Match reports whether rel (slash separated, relative to the base
// directory) should trigger a rebuild.
func (w *Watcher) Match(rel string) bool {
	matched, explicit := false, false
	for _, p := range w.patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			matched = true
			if literalDotName(p) {
				explicit = true
			}
		}
	}
	if !matched {
		return false
	}
	return explicit || !shouldIgnoreEvent(rel)
}

// literalDotName reports whether the last segment of pattern names a hidden
// file literally, as in ".env".
func literalDotName(pattern string) bool {
	last := pattern[strings.LastIndex(pattern, "/")+1:]
	return strings.HasPrefix(last, ".") && !strings.ContainsAny(last, "*?[{\\")
}

func (w *Watcher) excluded(path string) bool {
	return w.exclude != "." && w.exclude != w.base && within(path, w.exclude)
}

// shouldIgnoreEvent returns true for hidden files, editor temp/swap files and
// OS metadata files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	if base == "Thumbs.db" || base == "4913" {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// debounced returns a trigger that calls fn once the trigger has been quiet
// for d, and a stop function that cancels a pending call.
func debounced(d time.Duration, fn func(string)) (trigger func(string), stop func()) {
	var mu sync.Mutex
	var timer *time.Timer
	var last string
	stopped := false
	trigger = func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		last = path
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			mu.Lock()
			p := last
			live := !stopped
			mu.Unlock()
			if live {
				fn(p)
			}
		})
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	}
	return trigger, stop
}
