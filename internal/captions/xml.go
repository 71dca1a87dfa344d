package captions

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"
)

var (
	reXMLCue  = regexp.MustCompile(`(?is)<(?:text|p)\b[^>]*>(.*?)</(?:text|p)>`)
	reXMLRoot = regexp.MustCompile(`(?i)<(?:transcript|timedtext|tt)\b`)
)

// DecodeXML handles srv1, srv3 and ttml payloads. Structured token iteration
// is tried first; malformed documents fall back to regex extraction.
func DecodeXML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	parts, err := xmlCues(raw)
	if err != nil {
		return decodeXMLLoose(raw)
	}
	return CleanText(strings.Join(collapseRepeats(parts), " "))
}

func isCueElement(name xml.Name) bool {
	local := strings.ToLower(name.Local)
	return local == "text" || local == "p"
}

func xmlCues(raw string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Entity = xml.HTMLEntity

	parts := make([]string, 0, 64)
	depth := 0
	var cue strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				if strings.EqualFold(t.Name.Local, "br") {
					cue.WriteByte(' ')
				}
				continue
			}
			if isCueElement(t.Name) {
				depth = 1
				cue.Reset()
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if text := CleanText(cue.String()); text != "" {
					parts = append(parts, text)
				}
			}
		case xml.CharData:
			if depth > 0 {
				cue.Write(t)
			}
		}
	}
	return parts, nil
}

func decodeXMLLoose(raw string) string {
	matches := reXMLCue.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		if !reXMLRoot.MatchString(raw) {
			return ""
		}
		return CleanText(reAnyTag.ReplaceAllString(raw, " "))
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := CleanText(reAnyTag.ReplaceAllString(m[1], " ")); text != "" {
			parts = append(parts, text)
		}
	}
	return CleanText(strings.Join(collapseRepeats(parts), " "))
}
