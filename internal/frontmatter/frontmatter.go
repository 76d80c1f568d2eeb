// Package frontmatter splits YAML front matter from source documents.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front matter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml front matter start delimiter found but closing delimiter is missing")

// Document is a source file separated into front matter and body.
type Document struct {
	Raw    []byte         // front matter without delimiters
	Body   []byte         // everything after the closing delimiter
	Fields map[string]any // parsed front matter, never nil
	Had    bool           // whether the input carried a front matter block
}

// Split separates YAML front matter (`---` delimited) from the body.
//
// If the document does not start with a delimiter, had is false and body is
// the full input.
func Split(content []byte) (front []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	end := start + idx + len(nl)
	return content[start:end], content[start+idx+len(closeSeq):], true, nil
}

// ParseYAML parses raw YAML front matter (without --- delimiters) into a map.
func ParseYAML(front []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(front)) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(front, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Parse splits and decodes a document in one step.
func Parse(content []byte) (Document, error) {
	front, body, had, err := Split(content)
	if err != nil {
		return Document{}, err
	}
	fields, err := ParseYAML(front)
	if err != nil {
		return Document{}, fmt.Errorf("parse front matter: %w", err)
	}
	return Document{Raw: front, Body: body, Fields: fields, Had: had}, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
