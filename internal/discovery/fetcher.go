package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrAPIKeyMissing   = errors.New("YouTube Data API key is not configured")
	ErrQuotaExceeded   = errors.New("YouTube Data API quota exceeded")
	ErrNoDetail        = errors.New("video detail unavailable")
)

const (
	DefaultListingDelay = 120 * time.Millisecond
	listingOverscan     = 3
)

type EnumerateRequest struct {
	ChannelURL   string
	ContentType  model.ContentType
	ScanLimit    int
	PopularFirst bool
}

// Enumeration is the candidate list for one channel. ViewsKnown is set when
// every candidate carries a view count, which allows sorting before detail
// fetches.
type Enumeration struct {
	ChannelID    string
	ChannelTitle string
	Source       string
	Candidates   []model.VideoCandidate
	Diagnostics  []string
	ViewsKnown   bool
}

// Fetcher enumerates a channel and resolves per-video metadata.
//
// Detail may return a nil *ytdlp.VideoInfo when the record came from a
// source that does not expose caption tracks.
type Fetcher interface {
	Enumerate(ctx context.Context, req EnumerateRequest) (Enumeration, error)
	Detail(ctx context.Context, c model.VideoCandidate) (model.VideoRecord, *ytdlp.VideoInfo, error)
}

// YTDLPInfo fetches `yt-dlp -J` metadata for a single video.
type YTDLPInfo struct {
	CookiesPath string
	JSRuntime   string
}

func (y YTDLPInfo) VideoInfo(ctx context.Context, videoURL string) (*ytdlp.VideoInfo, error) {
	raw, err := ytdlp.VideoInfoJSON(ctx, ytdlp.InfoOptions{
		VideoURL:    videoURL,
		CookiesPath: y.CookiesPath,
		JSRuntime:   y.JSRuntime,
	})
	if err != nil {
		return nil, err
	}
	info, err := ytdlp.ParseVideoInfo(raw)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// RecordFromInfo maps yt-dlp metadata onto an output record. Values yt-dlp
// omits stay nil or empty.
func RecordFromInfo(c model.VideoCandidate, info ytdlp.VideoInfo) model.VideoRecord {
	id := firstNonEmpty(info.ID, c.ID)
	url := firstNonEmpty(info.WebpageURL, c.URL)
	if url == "" && id != "" {
		url = channel.WatchURL(id)
	}
	dur := info.DurationSeconds()
	if dur == nil {
		dur = c.DurationSeconds
	}
	rec := model.VideoRecord{
		VideoID:         id,
		URL:             url,
		Title:           firstNonEmpty(info.Title, c.Title),
		ViewCount:       info.ViewCount,
		LikeCount:       info.LikeCount,
		CommentCount:    info.CommentCount,
		PublishedAt:     publishedFromInfo(info),
		DurationSeconds: dur,
		IsShort:         channel.IsShort(c.URL, dur),
		ChannelID:       info.ChannelID,
		ChannelTitle:    firstNonEmpty(info.Channel, info.Uploader),
		Description:     info.Description,
		Tags:            info.Tags,
		DefaultLanguage: info.Language,
		Thumbnails:      model.Thumbnails{High: info.Thumbnail},
	}
	return rec
}

func publishedFromInfo(info ytdlp.VideoInfo) string {
	if info.Timestamp != nil && *info.Timestamp > 0 {
		return time.Unix(*info.Timestamp, 0).UTC().Format(time.RFC3339)
	}
	if d, err := time.Parse("20060102", strings.TrimSpace(info.UploadDate)); err == nil {
		return d.Format("2006-01-02")
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func scanWindow(scanLimit int) int {
	if scanLimit <= 0 {
		return 0
	}
	return scanLimit * listingOverscan
}
