// Package htmlsplit separates local images referenced by HTML clipboard
// content into their own URI records and splices them back.
package htmlsplit

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ImageSource is the src value of one <img> tag.
type ImageSource struct {
	URI string

	// Offset is the byte offset of the value within the scanned HTML.
	Offset int
}

// Scanner finds <img> src values in HTML.
type Scanner interface {
	ImageSources(html string) []ImageSource
}

var (
	imgTagPattern  = regexp.MustCompile(`(?i)<img(?:[\s/][^>]*)?>`)
	srcAttrPattern = regexp.MustCompile(`(?i)\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// RegexScanner matches <img> tags and their src attribute with regular
// expressions. It is fast and approximate: a '>' inside a quoted attribute
// ends the tag early.
type RegexScanner struct{}

func (RegexScanner) ImageSources(s string) []ImageSource {
	var sources []ImageSource
	for _, tag := range imgTagPattern.FindAllStringIndex(s, -1) {
		text := s[tag[0]:tag[1]]
		m := srcAttrPattern.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		sources = append(sources, ImageSource{
			URI:    text[start:end],
			Offset: tag[0] + start,
		})
	}
	return sources
}

// TokenizerScanner walks the markup with the x/net/html tokenizer, so
// quoting, comments and raw text elements are honored. Values containing
// character references are skipped since their raw bytes differ from the
// URI they denote.
type TokenizerScanner struct{}

func (TokenizerScanner) ImageSources(s string) []ImageSource {
	var sources []ImageSource
	z := html.NewTokenizer(strings.NewReader(s))
	pos := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return sources
		}
		raw := append([]byte(nil), z.Raw()...)
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if src, ok := imgSource(z, raw); ok {
				src.Offset += pos
				sources = append(sources, src)
			}
		}
		pos += len(raw)
	}
}

func imgSource(z *html.Tokenizer, raw []byte) (ImageSource, bool) {
	name, hasAttr := z.TagName()
	if string(name) != "img" || !hasAttr {
		return ImageSource{}, false
	}
	var value string
	found := false
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "src" {
			value, found = string(val), true
			break
		}
	}
	if !found {
		return ImageSource{}, false
	}
	start, end, ok := rawAttrValue(raw, "src")
	if !ok || string(raw[start:end]) != value {
		return ImageSource{}, false
	}
	return ImageSource{URI: value, Offset: start}, true
}

// rawAttrValue locates the value of the named attribute within a raw start
// tag.
func rawAttrValue(raw []byte, name string) (int, int, bool) {
	i := bytes.IndexAny(raw, " \t\n\f\r/>")
	if i < 0 {
		return 0, 0, false
	}
	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			return 0, 0, false
		}
		nameStart := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		if i == nameStart {
			// stray '='
			i++
			continue
		}
		attr := raw[nameStart:i]
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			continue
		}
		i++
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) {
			return 0, 0, false
		}
		var start, end int
		if q := raw[i]; q == '"' || q == '\'' {
			start = i + 1
			rel := bytes.IndexByte(raw[start:], q)
			if rel < 0 {
				return 0, 0, false
			}
			end = start + rel
			i = end + 1
		} else {
			start = i
			for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
				i++
			}
			end = i
		}
		if strings.EqualFold(string(attr), name) {
			return start, end, true
		}
	}
	return 0, 0, false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}
