package enrich

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockSelector matches the elements the description is built from.
const blockSelector = "p, article, div.content"

const truncationMarker = "..."

// Extract pulls the title and a short description out of an HTML document.
// It never fails: malformed markup yields whatever the parser recovers, a
// missing title falls back to pageURL and missing text yields "".
func Extract(body []byte, pageURL string, maxLen, blocks int) (title, description string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageURL, ""
	}

	title = collapse(doc.Find("title").First().Text())
	if title == "" {
		title = pageURL
	}

	var parts []string
	picked := make(map[*html.Node]struct{})
	doc.Find(blockSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(parts) >= blocks {
			return false
		}
		// Text of a nested block is already part of its picked ancestor.
		nested := false
		s.ParentsFiltered(blockSelector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
			_, nested = picked[p.Get(0)]
			return !nested
		})
		if nested {
			return true
		}
		text := collapse(s.Text())
		if text == "" {
			return true
		}
		picked[s.Get(0)] = struct{}{}
		parts = append(parts, text)
		return true
	})

	return title, Truncate(strings.Join(parts, " "), maxLen)
}

// Truncate cuts s to maxLen characters and appends "..." when it was longer.
// A non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen])) + truncationMarker
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
