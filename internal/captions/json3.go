package captions

import (
	"encoding/json"
	"strings"
)

type json3Payload struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func DecodeJSON3(raw string) string {
	var payload json3Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}
	parts := make([]string, 0, len(payload.Events))
	for _, ev := range payload.Events {
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.UTF8)
		}
		if text := CleanText(b.String()); text != "" {
			parts = append(parts, text)
		}
	}
	return CleanText(strings.Join(collapseRepeats(parts), " "))
}
