package units

import (
	"context"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// htmlExtensions are kept as-is on redirect sources; other paths get /index.html.
var htmlExtensions = map[string]bool{".htm": true, ".html": true}

type redirect struct {
	From string
	To   string
}

// Redirects writes an HTML redirect page for every entry. Sources are site
// paths ("/old/page"); targets may be site paths or absolute URLs.
func Redirects(table map[string]string) (engine.Unit, error) {
	entries := make([]redirect, 0, len(table))
	for from, to := range table {
		if strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("redirect %q: empty target", from)
		}
		if _, err := redirectFile(from); err != nil {
			return nil, err
		}
		entries = append(entries, redirect{From: from, To: to})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].From < entries[j].From })

	return engine.Func("redirects", func(_ context.Context, files engine.Files, _ engine.Pipeline) error {
		for _, r := range entries {
			name, _ := redirectFile(r.From)
			files[name] = &engine.File{
				Contents: []byte(redirectPage(r.To)),
				Mode:     0o644,
				Metadata: map[string]any{"redirect": r.To},
			}
		}
		return nil
	}), nil
}

// redirectFile maps a redirect source to the file written for it.
func redirectFile(from string) (string, error) {
	trimmed := strings.TrimSpace(from)
	if trimmed == "" || strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("redirect source %q is not a valid site path", from)
	}
	rel := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if strings.HasSuffix(trimmed, "/") || !htmlExtensions[strings.ToLower(path.Ext(rel))] {
		rel = path.Join(rel, "index.html")
	}
	return rel, nil
}

func redirectPage(to string) string {
	t := html.EscapeString(to)
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0;url=` + t + `">
<link rel="canonical" href="` + t + `">
<title>Redirecting</title>
</head>
<body>
<a href="` + t + `">Click here if you are not redirected.</a>
</body>
</html>
`
}
