package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yt-channel-scan/internal/httpx"
)

var ErrChannelIDNotFound = errors.New("channel id not found on page")

var reChannelPath = regexp.MustCompile(`/channel/(UC[A-Za-z0-9_-]{22})`)

type PageInfo struct {
	ChannelID string
	Title     string
	Canonical string
}

// PageResolver reads the public channel page to map custom or legacy
// channel URLs onto a UC... channel id.
type PageResolver struct {
	Client *http.Client
}

func (r PageResolver) Resolve(ctx context.Context, channelURL string) (PageInfo, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, channelURL, nil)
	if err != nil {
		return PageInfo{}, fmt.Errorf("build channel page request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return PageInfo{}, fmt.Errorf("fetch channel page: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return PageInfo{}, fmt.Errorf("fetch channel page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return PageInfo{}, fmt.Errorf("parse channel page: %w", err)
	}
	return parseChannelPage(doc)
}

func parseChannelPage(doc *goquery.Document) (PageInfo, error) {
	info := PageInfo{}
	info.Canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")
	info.Title = strings.TrimSpace(firstAttr(doc, `meta[property="og:title"]`, "content"))
	if info.Title == "" {
		info.Title = strings.TrimSpace(firstAttr(doc, `meta[itemprop="name"]`, "content"))
	}

	candidates := []string{
		firstAttr(doc, `meta[itemprop="identifier"]`, "content"),
		firstAttr(doc, `meta[itemprop="channelId"]`, "content"),
		info.Canonical,
		firstAttr(doc, `meta[property="og:url"]`, "content"),
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if reChannelID.MatchString(c) {
			info.ChannelID = c
			return info, nil
		}
		if m := reChannelPath.FindStringSubmatch(c); len(m) > 1 {
			info.ChannelID = m[1]
			return info, nil
		}
	}
	return info, ErrChannelIDNotFound
}

func firstAttr(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return v
}
