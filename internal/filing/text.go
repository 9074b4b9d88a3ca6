// Package filing converts downloaded SEC filing documents into plain text
// suitable for pattern extraction.
package filing

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Text extracts plain text from a filing document. HTML bodies are cleaned
// with goquery: scripts, styles and hidden elements are dropped, inline
// XBRL tags are unwrapped to their text content. Non-HTML bodies pass
// through with whitespace normalization only. Table extraction is out of
// scope; tables are flattened to their cell text.
func Text(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "filing: read document")
	}

	// Older EDGAR documents are windows-1252, not UTF-8.
	if !utf8.Valid(raw) {
		if decoded, decErr := charmap.Windows1252.NewDecoder().Bytes(raw); decErr == nil {
			raw = decoded
		}
	}

	content := string(raw)
	if !strings.Contains(content, "<") {
		return normalize(content), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		// Malformed markup still often yields usable text via a plain
		// tag strip.
		return normalize(tagPattern.ReplaceAllString(content, " ")), nil
	}

	doc.Find("script, style, [hidden], [style*='display:none'], [style*='display: none']").Remove()

	var text string
	if body := doc.Find("body"); body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}

	return normalize(text), nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
