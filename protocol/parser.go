package protocol

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reply markers searched in received text, in match order.
const (
	markerVersion = KeywordVersion
	markerReadAll = KeywordGPIOReadAll
	markerADCRead = KeywordADCRead
	markerPrompt  = ">"
)

// Token positions of the payload for each marker.
const (
	versionTokenIndex = 3
	readAllTokenIndex = 3
	adcTokenIndex     = 4
)

// Parse extracts the payload token of a version, readall or adc reply from
// the decoded frame text. It returns an empty string when the text matches
// none of the markers or the token position is out of range.
//
// Matching is by substring and is checked in order: "ver", then
// "gpio readall" together with the prompt, then "adc read". Only the first
// matching marker is considered.
func Parse(text string) string {
	text = trimPadding(text)

	var idx int
	switch {
	case strings.Contains(text, markerVersion):
		idx = versionTokenIndex
	case strings.Contains(text, markerReadAll):
		if !strings.Contains(text, markerPrompt) {
			return ""
		}
		idx = readAllTokenIndex
	case strings.Contains(text, markerADCRead):
		idx = adcTokenIndex
	default:
		return ""
	}

	tokens := Tokens(text)
	if idx >= len(tokens) {
		return ""
	}

	return tokens[idx]
}

// ParseValue is Parse returning ErrNotRecognized instead of an empty string.
func ParseValue(text string) (string, error) {
	v := Parse(text)
	if v == "" {
		return "", ErrNotRecognized
	}

	return v, nil
}

// Tokens splits text at every whitespace character. Adjacent separators
// produce empty tokens, so "a\r\nb" yields ["a", "", "b"]; the payload
// positions used by Parse depend on this.
func Tokens(text string) []string {
	tokens := make([]string, 0, 8)
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			tokens = append(tokens, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}

	return append(tokens, text[start:])
}

// ReplyLines returns the reply lines of an echoed response, without the
// echoed command line and the prompt.
func ReplyLines(text string) []string {
	lines := strings.FieldsFunc(trimPadding(text), func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	if len(lines) < 2 {
		return nil
	}

	out := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" || line == markerPrompt {
			continue
		}
		out = append(out, strings.TrimPrefix(line, markerPrompt))
	}

	return out
}

// trimPadding drops the zero fill of a frame buffer.
func trimPadding(text string) string {
	return strings.TrimRight(text, "\x00")
}
