package units

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// LayoutOptions configures Layouts.
type LayoutOptions struct {
	Directory    string // absolute path of the layouts directory
	Property     string // metadata key naming the layout
	BeforeSuffix string
	AfterSuffix  string
}

// Layouts wraps every file that names a layout in the Property metadata key
// with Directory/NAME<BeforeSuffix> and Directory/NAME<AfterSuffix>. A missing
// layout file fails the build. Restrict the files it sees with engine.Match.
func Layouts(opts LayoutOptions) (engine.Unit, error) {
	if opts.Directory == "" || opts.Property == "" {
		return nil, fmt.Errorf("layouts: directory and property are required")
	}
	return engine.Func("layouts", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		type pair struct{ before, after []byte }
		loaded := map[string]pair{}
		for name, f := range files {
			layout, _ := f.Metadata[opts.Property].(string)
			if layout == "" {
				continue
			}
			if strings.Contains(layout, "..") {
				return fmt.Errorf("%s: invalid layout name %q", name, layout)
			}
			lp, ok := loaded[layout]
			if !ok {
				before, err := os.ReadFile(filepath.Join(opts.Directory, layout+opts.BeforeSuffix))
				if err != nil {
					return fmt.Errorf("%s: layout %q: %w", name, layout, err)
				}
				after, err := os.ReadFile(filepath.Join(opts.Directory, layout+opts.AfterSuffix))
				if err != nil {
					return fmt.Errorf("%s: layout %q: %w", name, layout, err)
				}
				lp = pair{before, after}
				loaded[layout] = lp
			}
			slog.Debug("Wrapping file", logfields.Path(name), slog.String("layout", layout))
			out := make([]byte, 0, len(lp.before)+len(f.Contents)+len(lp.after))
			out = append(out, lp.before...)
			out = append(out, f.Contents...)
			out = append(out, lp.after...)
			f.Contents = out
		}
		return nil
	}), nil
}

// Rename gives files still carrying a .md extension their final .html name.
func Rename() engine.Unit {
	return engine.Func("rename", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for name, f := range files {
			if strings.HasSuffix(name, ".md") {
				delete(files, name)
				files[replaceExt(name, ".html")] = f
			}
		}
		return nil
	})
}
