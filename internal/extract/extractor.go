// Package extract converts raw uploaded bytes into plain text, selected
// by declared mime type over a closed set of supported formats.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedMime is returned for mime types outside the supported
// set. Adding a format means adding a case to Extract and its function.
var ErrUnsupportedMime = errors.New("unsupported mime type")

var whitespaceRE = regexp.MustCompile(`\s+`)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract converts data to a single text string. Emptiness of the
// result is not an extraction failure; the caller decides what empty
// text means.
func (e *Extractor) Extract(data []byte, mimeType string) (string, error) {
	switch normalizeMime(mimeType) {
	case "application/pdf":
		return extractPDF(data)
	case "text/plain", "text/markdown":
		return extractPlainText(data)
	case "text/html":
		return extractHTML(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMime, mimeType)
	}
}

// normalizeMime strips parameters such as "; charset=utf-8".
func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("plain text payload is not valid UTF-8")
	}
	return string(data), nil
}

// extractPDF pulls text page by page, in page order, joining pages with
// a visible delimiter. A failure on any page fails the whole document;
// there is no skip-page fallback.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", fmt.Errorf("failed to read pdf page %d", i)
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract pdf page %d: %w", i, err)
		}

		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s", i, pageText)
	}

	return sb.String(), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRE.ReplaceAllString(text, " ")

	return strings.TrimSpace(text), nil
}
