package units

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Markdown renders .md and .markdown files to HTML and renames them to .html.
func Markdown() engine.Unit {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return engine.Func("markdown", func(ctx context.Context, files engine.Files, _ engine.Pipeline) error {
		for name, f := range files {
			if !isMarkdown(name) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := md.Convert(f.Contents, &buf); err != nil {
				return fmt.Errorf("render %s: %w", name, err)
			}
			f.Contents = buf.Bytes()
			delete(files, name)
			files[replaceExt(name, ".html")] = f
		}
		return nil
	})
}

func isMarkdown(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
