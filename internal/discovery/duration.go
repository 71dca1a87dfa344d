package discovery

import (
	"regexp"
	"strconv"
	"strings"
)

var reISODuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISODuration converts the Data API "PT#H#M#S" form to seconds.
// Anything else, including day components and bare "PT", is unknown.
func ParseISODuration(raw string) *int {
	s := strings.TrimSpace(raw)
	if s == "" || s == "PT" {
		return nil
	}
	m := reISODuration.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil
		}
		total += n * mult
	}
	return &total
}
