package channel

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"yt-channel-scan/internal/model"
)

const defaultHost = "www.youtube.com"

var channelTabs = []string{"/shorts", "/videos", "/streams", "/featured", "/playlists", "/community", "/about"}

var (
	reBareHandle = regexp.MustCompile(`^@?[A-Za-z0-9._-]+$`)
	reVideoID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	reChannelID  = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

	reShortsID = regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{6,})`)
	reQueryV   = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`)
	reShortURL = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`)
	reEmbedID  = regexp.MustCompile(`/(?:embed|live)/([A-Za-z0-9_-]{6,})`)
)

// NormalizeReference turns a handle or channel URL into a canonical base URL
// with scheme and host, no content tab, query, fragment or trailing slash.
func NormalizeReference(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("channel reference is required")
	}
	if !strings.Contains(s, "/") && reBareHandle.MatchString(s) {
		if reChannelID.MatchString(s) {
			return "https://" + defaultHost + "/channel/" + s, nil
		}
		return "https://" + defaultHost + "/@" + strings.TrimPrefix(s, "@"), nil
	}
	if !strings.HasPrefix(strings.ToLower(s), "http://") && !strings.HasPrefix(strings.ToLower(s), "https://") {
		s = "https://" + strings.TrimLeft(s, "/")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse channel reference %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("channel reference %q has no host", raw)
	}

	path := strings.TrimRight(u.Path, "/")
	for stripped := true; stripped; {
		stripped = false
		for _, tab := range channelTabs {
			if strings.HasSuffix(strings.ToLower(path), tab) {
				path = strings.TrimRight(path[:len(path)-len(tab)], "/")
				stripped = true
			}
		}
	}

	out := url.URL{
		Scheme: strings.ToLower(u.Scheme),
		Host:   strings.ToLower(u.Host),
		Path:   path,
	}
	return out.String(), nil
}

type ReferenceKind string

const (
	KindHandle    ReferenceKind = "handle"
	KindChannelID ReferenceKind = "channel_id"
	KindUsername  ReferenceKind = "username"
	KindCustom    ReferenceKind = "custom"
)

type Reference struct {
	Kind  ReferenceKind
	Value string
}

// ParseReference classifies a normalized channel URL.
func ParseReference(channelURL string) (Reference, error) {
	u, err := url.Parse(strings.TrimSpace(channelURL))
	if err != nil {
		return Reference{}, fmt.Errorf("parse channel URL: %w", err)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return Reference{}, fmt.Errorf("channel URL %q has no channel path", channelURL)
	}
	first := segs[0]
	switch {
	case strings.HasPrefix(first, "@"):
		return Reference{Kind: KindHandle, Value: strings.TrimPrefix(first, "@")}, nil
	case first == "channel" && len(segs) > 1:
		return Reference{Kind: KindChannelID, Value: segs[1]}, nil
	case first == "user" && len(segs) > 1:
		return Reference{Kind: KindUsername, Value: segs[1]}, nil
	case first == "c" && len(segs) > 1:
		return Reference{Kind: KindCustom, Value: segs[1]}, nil
	default:
		return Reference{Kind: KindCustom, Value: first}, nil
	}
}

func ExtractVideoID(raw string) string {
	s := strings.TrimSpace(raw)
	if reVideoID.MatchString(s) {
		return s
	}
	for _, re := range []*regexp.Regexp{reShortsID, reQueryV, reShortURL, reEmbedID} {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func WatchURL(videoID string) string {
	return "https://" + defaultHost + "/watch?v=" + videoID
}

func IsShortURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "youtube.com/shorts/")
}

// IsShort classifies short-form content. A known duration is authoritative;
// the /shorts/ route is used only when the duration is unknown.
func IsShort(videoURL string, durationSeconds *int) bool {
	if durationSeconds != nil {
		return *durationSeconds <= 60
	}
	return IsShortURL(videoURL)
}

// ListingURLs returns the channel tabs to enumerate for a content type.
func ListingURLs(baseURL string, contentType model.ContentType, popularFirst bool) []string {
	base := strings.TrimRight(baseURL, "/")
	tabs := make([]string, 0, 2)
	if contentType == model.ContentLongform || contentType == model.ContentBoth {
		tabs = append(tabs, "videos")
	}
	if contentType == model.ContentShorts || contentType == model.ContentBoth {
		tabs = append(tabs, "shorts")
	}
	if len(tabs) == 0 {
		return []string{base}
	}
	urls := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		if popularFirst {
			urls = append(urls, base+"/"+tab+"?view=0&sort=p&flow=grid")
		} else {
			urls = append(urls, base+"/"+tab)
		}
	}
	return urls
}
