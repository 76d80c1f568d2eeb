package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// read loads the source tree into memory, splitting front matter into metadata.
func (s *Site) read(ctx context.Context) (Files, error) {
	st, err := os.Stat(s.src)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", s.src)
	}

	files := make(Files)
	err = filepath.WalkDir(s.src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.src, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && s.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.ignored(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := frontmatter.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		files[rel] = &File{
			Contents:    doc.Body,
			Mode:        info.Mode().Perm(),
			Metadata:    doc.Fields,
			Frontmatter: doc.Raw,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return files, nil
}

func (s *Site) ignored(rel string) bool {
	ok, _ := matchAny(s.opts.Ignore, rel)
	return ok
}

// write persists files under the destination, removing it first when Clean is set.
func (s *Site) write(ctx context.Context, files Files) error {
	if s.opts.Clean {
		if err := s.guardClean(); err != nil {
			return err
		}
		if err := os.RemoveAll(s.dst); err != nil {
			return fmt.Errorf("clean destination: %w", err)
		}
	}
	if err := os.MkdirAll(s.dst, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	for name, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(s.dst, filepath.FromSlash(name))
		if !within(target, s.dst) {
			return fmt.Errorf("refusing to write %q outside destination", name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", name, err)
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(target, f.Contents, mode); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// guardClean refuses to remove a destination that would take the project with it.
func (s *Site) guardClean() error {
	if s.dst == s.dir || within(s.dir, s.dst) {
		return fmt.Errorf("refusing to clean destination %s: contains the base directory", s.dst)
	}
	if within(s.src, s.dst) {
		return fmt.Errorf("refusing to clean destination %s: contains the source directory", s.dst)
	}
	return nil
}

// within reports whether path is root or lies beneath it.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
