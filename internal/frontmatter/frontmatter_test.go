package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, fm)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\nlayout: page\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("layout: page\n"), fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_CRLF(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyBlock(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	_, _, had, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	require.False(t, had)
}

func TestParse_DecodesFields(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: Hello\ntags:\n  - a\n---\nbody\n"))
	require.NoError(t, err)
	require.True(t, doc.Had)
	require.Equal(t, "Hello", doc.Fields["title"])
	require.Equal(t, []any{"a"}, doc.Fields["tags"])
	require.Equal(t, []byte("body\n"), doc.Body)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\nkey: [unclosed\n---\nbody\n"))
	require.Error(t, err)
}

func TestParse_PlainFileHasEmptyFields(t *testing.T) {
	doc, err := Parse([]byte("body {}\n"))
	require.NoError(t, err)
	require.False(t, doc.Had)
	require.NotNil(t, doc.Fields)
	require.Empty(t, doc.Fields)
}
