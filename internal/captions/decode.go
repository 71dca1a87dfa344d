package captions

import (
	"html"
	"regexp"
	"strings"
)

type Format string

const (
	FormatVTT   Format = "vtt"
	FormatJSON3 Format = "json3"
	FormatSRV3  Format = "srv3"
	FormatSRV2  Format = "srv2"
	FormatSRV1  Format = "srv1"
	FormatTTML  Format = "ttml"
)

var (
	reWhitespace = regexp.MustCompile(`[\s\x{00a0}]+`)
	reAnyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
)

func ParseFormat(raw string) Format {
	return Format(strings.ToLower(strings.TrimSpace(raw)))
}

// IsXML reports whether the format is one of the XML cue formats.
func (f Format) IsXML() bool {
	switch f {
	case FormatSRV3, FormatSRV2, FormatSRV1, FormatTTML:
		return true
	default:
		return false
	}
}

// Decode converts a raw caption payload into plain text. It never panics;
// a payload that cannot be parsed yields "".
func Decode(format Format, raw string) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	switch {
	case format == FormatVTT:
		return DecodeVTT(raw)
	case format == FormatJSON3:
		return DecodeJSON3(raw)
	case format.IsXML():
		return DecodeXML(raw)
	default:
		return CleanText(reAnyTag.ReplaceAllString(raw, " "))
	}
}

// CleanText resolves HTML entities and collapses whitespace to single spaces.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// collapseRepeats drops consecutive duplicate lines and rolling-caption
// prefixes, where a line is immediately rebuilt with more words.
func collapseRepeats(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(out) == 0 {
			out = append(out, line)
			continue
		}
		prev := out[len(out)-1]
		switch {
		case line == prev:
			continue
		case strings.HasPrefix(line, prev+" "):
			out[len(out)-1] = line
		default:
			out = append(out, line)
		}
	}
	return out
}
