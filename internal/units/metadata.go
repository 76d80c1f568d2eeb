package units

import (
	"context"
	"path"
	"strings"

	"github.com/inful/mdfp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Metadata keys set by the metadata units.
const (
	KeyRootPath = "rootPath"
	KeyTitle    = "title"
	KeyGit      = "git"
)

// KeyFingerprint is the metadata key holding the content fingerprint.
const KeyFingerprint = mdfp.FingerprintField

// RootPath sets rootPath on every file to the relative prefix leading back to
// the site root: "" at the top level, "../" one directory down, and so on.
func RootPath() engine.Unit {
	return engine.Func("rootpath", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for name, f := range files {
			depth := strings.Count(name, "/")
			ensureMetadata(f)[KeyRootPath] = strings.Repeat("../", depth)
		}
		return nil
	})
}

// Title derives a title from the file name for documents that have none.
// "getting-started.md" becomes "Getting Started"; an index file takes its
// directory's name.
func Title() engine.Unit {
	caser := cases.Title(language.English)
	return engine.Func("title", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for name, f := range files {
			if !isDocument(name) {
				continue
			}
			md := ensureMetadata(f)
			if s, ok := md[KeyTitle].(string); ok && strings.TrimSpace(s) != "" {
				continue
			}
			if t := titleFromPath(name); t != "" {
				md[KeyTitle] = caser.String(t)
			}
		}
		return nil
	})
}

func titleFromPath(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if base == "index" || base == "README" {
		dir := path.Dir(name)
		if dir == "." {
			return ""
		}
		base = path.Base(dir)
	}
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}

// Fingerprint stores a content fingerprint of front matter and body for each
// document, letting templates and caches detect changed pages.
func Fingerprint() engine.Unit {
	return engine.Func("fingerprint", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for name, f := range files {
			if !isDocument(name) {
				continue
			}
			front := strings.TrimSuffix(string(f.Frontmatter), "\n")
			ensureMetadata(f)[KeyFingerprint] = mdfp.CalculateFingerprintFromParts(front, string(f.Contents))
		}
		return nil
	})
}

var documentExts = map[string]bool{".md": true, ".markdown": true, ".html": true, ".htm": true}

func isDocument(name string) bool {
	return documentExts[strings.ToLower(path.Ext(name))]
}

func ensureMetadata(f *engine.File) map[string]any {
	if f.Metadata == nil {
		f.Metadata = map[string]any{}
	}
	return f.Metadata
}
