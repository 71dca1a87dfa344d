package captions

import (
	"regexp"
	"strings"
)

var (
	reCueID       = regexp.MustCompile(`^\d+$`)
	reTimingLong  = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{1,2}:\d{2}:\d{2}\.\d{3}`)
	reTimingShort = regexp.MustCompile(`\d{1,2}:\d{2}\.\d{3}\s*-->\s*\d{1,2}:\d{2}\.\d{3}`)
	reInlineTime  = regexp.MustCompile(`<\d{1,2}:\d{2}(?::\d{2})?\.\d{3}>`)
	reStyleTag    = regexp.MustCompile(`(?i)</?(?:c|i|b|u|v|lang|ruby|rt)(?:[.\s][^>]*)?>`)
)

func DecodeVTT(raw string) string {
	structured := false
	lines := make([]string, 0, 64)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isVTTHeader(line) {
			structured = structured || strings.HasPrefix(line, "WEBVTT")
			continue
		}
		if reCueID.MatchString(line) {
			continue
		}
		if reTimingLong.MatchString(line) || reTimingShort.MatchString(line) {
			structured = true
			continue
		}
		line = reInlineTime.ReplaceAllString(line, "")
		line = reStyleTag.ReplaceAllString(line, "")
		line = CleanText(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if !structured {
		return ""
	}
	return CleanText(strings.Join(collapseRepeats(lines), " "))
}

func isVTTHeader(line string) bool {
	switch {
	case strings.HasPrefix(line, "WEBVTT"):
		return true
	case line == "NOTE" || strings.HasPrefix(line, "NOTE "):
		return true
	case line == "STYLE" || line == "REGION":
		return true
	case strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:"):
		return true
	default:
		return false
	}
}
