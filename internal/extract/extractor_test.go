package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract([]byte("Hello, world.\nSecond line."), "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "Hello, world.\nSecond line.", text)
}

func TestExtractMarkdownPassesThrough(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract([]byte("# Title\n\nSome *body* text."), "text/markdown")

	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nSome *body* text.", text)
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract([]byte{0xff, 0xfe, 0xfd}, "text/plain")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "UTF-8")
}

func TestExtractUnsupportedMime(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract([]byte("data"), "application/zip")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMime)
}

func TestExtractNormalizesMimeParameters(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract([]byte("plain"), "Text/Plain; charset=utf-8")

	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestExtractHTMLStripsChrome(t *testing.T) {
	e := NewExtractor()
	html := `<html>
<head><title>Doc</title><style>body { color: red; }</style></head>
<body>
  <nav>Navigation</nav>
  <script>alert("hi");</script>
  <p>First   paragraph.</p>
  <p>Second paragraph.</p>
  <footer>Footer text</footer>
</body>
</html>`

	text, err := e.Extract([]byte(html), "text/html")

	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "Footer text")
	assert.NotContains(t, text, "color: red")
}

func TestExtractMalformedPDFFails(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract([]byte("definitely not a pdf"), "application/pdf")

	require.Error(t, err)
}
