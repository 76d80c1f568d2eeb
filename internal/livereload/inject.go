package livereload

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// ScriptTag is inserted into served HTML pages.
const ScriptTag = `<script async src="` + ScriptPath + `"></script>`

// maxInjectSize bounds how much of a page is buffered; larger pages pass through unmodified.
const maxInjectSize = 2 << 20

// Inject wraps next so HTML responses carry the livereload client script.
func Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !(p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")) {
			next.ServeHTTP(w, r)
			return
		}
		iw := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(iw, r)
		iw.finalize()
	})
}

// injector buffers an HTML response so the script can be inserted.
type injector struct {
	http.ResponseWriter
	status        int
	buf           bytes.Buffer
	headerWritten bool
	passthrough   bool
	started       bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.headerWritten = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.started {
		i.started = true
		ct := i.Header().Get("Content-Type")
		if i.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			i.passthrough = true
			i.ResponseWriter.WriteHeader(i.status)
			i.headerWritten = true
		}
	}
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if i.buf.Len()+len(data) > maxInjectSize {
		i.passthrough = true
		i.ResponseWriter.WriteHeader(i.status)
		i.headerWritten = true
		if _, err := i.ResponseWriter.Write(i.buf.Bytes()); err != nil {
			return 0, err
		}
		return i.ResponseWriter.Write(data)
	}
	return i.buf.Write(data)
}

func (i *injector) finalize() {
	if i.passthrough {
		return
	}
	if i.buf.Len() == 0 {
		if !i.headerWritten {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}
	out := InsertScript(i.buf.Bytes())
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(out)
}

// InsertScript places ScriptTag before the closing body tag of page, or
// before </html>, or at the end when neither exists. Tags inside comments,
// scripts and attribute values are not mistaken for the real one.
func InsertScript(page []byte) []byte {
	at := closingTagOffset(page)
	out := make([]byte, 0, len(page)+len(ScriptTag))
	out = append(out, page[:at]...)
	out = append(out, ScriptTag...)
	return append(out, page[at:]...)
}

func closingTagOffset(page []byte) int {
	z := html.NewTokenizer(bytes.NewReader(page))
	offset, body, htmlEnd := 0, -1, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return len(page)
			}
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			switch string(name) {
			case "body":
				body = offset
			case "html":
				htmlEnd = offset
			}
		}
		offset += raw
	}
	switch {
	case body >= 0:
		return body
	case htmlEnd >= 0:
		return htmlEnd
	default:
		return len(page)
	}
}
