package history

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// MaxPreviewRunes bounds the length of a stored preview.
const MaxPreviewRunes = 120

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Collapse trims s and collapses internal whitespace to single spaces.
func Collapse(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Preview renders the payload's first record as one short line. HTML is
// reduced to its text; records without text show their MIME type.
func Preview(p *pasteboard.Payload) string {
	rec, err := p.RecordAt(0)
	if err != nil {
		return ""
	}

	var text string
	if h, ok := rec.Content.HTML(); ok {
		text = htmlText(h)
	} else {
		text = rec.ConvertToText()
	}
	text = Collapse(text)
	if text == "" {
		return "[" + rec.MimeType + "]"
	}
	return truncate(text, MaxPreviewRunes)
}

// htmlText returns the character data of an HTML fragment, skipping
// script and style bodies.
func htmlText(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if s := string(name); s == "script" || s == "style" {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if s := string(name); (s == "script" || s == "style") && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func truncate(s string, n int) string {
	if CountChars(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
