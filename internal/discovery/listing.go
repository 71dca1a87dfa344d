package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

// ListingSource enumerates channel tabs with `yt-dlp --flat-playlist` and
// defers per-video metadata to `yt-dlp -J`.
type ListingSource struct {
	CookiesPath string
	JSRuntime   string
	Delay       time.Duration
	Log         zerolog.Logger

	limiter *rate.Limiter
}

func NewListingSource(cookiesPath, jsRuntime string, log zerolog.Logger) *ListingSource {
	return &ListingSource{
		CookiesPath: cookiesPath,
		JSRuntime:   jsRuntime,
		Delay:       DefaultListingDelay,
		Log:         log.With().Str("component", "discovery").Str("source", "listing").Logger(),
	}
}

func (s *ListingSource) Enumerate(ctx context.Context, req EnumerateRequest) (Enumeration, error) {
	urls := channel.ListingURLs(req.ChannelURL, req.ContentType, req.PopularFirst)
	out := Enumeration{Source: "listing"}
	out.Diagnostics = append(out.Diagnostics, "Listing URLs: "+strings.Join(urls, ", "))

	seen := make(map[string]struct{})
	for _, listURL := range urls {
		if err := s.wait(ctx); err != nil {
			return Enumeration{}, err
		}
		pl, err := s.fetchListing(ctx, listURL, scanWindow(req.ScanLimit))
		if err != nil {
			if ctx.Err() != nil {
				return Enumeration{}, ctx.Err()
			}
			s.Log.Warn().Err(err).Str("url", listURL).Msg("listing extraction failed")
			out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("List extraction failed for %s: %v", listURL, err))
			continue
		}
		if out.ChannelID == "" {
			out.ChannelID = pl.ChannelID
		}
		if out.ChannelTitle == "" {
			out.ChannelTitle = firstNonEmpty(pl.Channel, pl.Title)
		}

		entries := pl.FlattenEntries()
		out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("Entries from %s: %d", listURL, len(entries)))
		for _, e := range entries {
			c, ok := candidateFromEntry(e)
			if !ok {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out.Candidates = append(out.Candidates, c)
		}
	}

	out.ViewsKnown = len(out.Candidates) > 0
	for _, c := range out.Candidates {
		if c.ViewCount == nil {
			out.ViewsKnown = false
			break
		}
	}
	s.Log.Debug().Int("candidates", len(out.Candidates)).Msg("listing enumerated")
	return out, nil
}

func (s *ListingSource) Detail(ctx context.Context, c model.VideoCandidate) (model.VideoRecord, *ytdlp.VideoInfo, error) {
	videoURL := firstNonEmpty(c.URL, channel.WatchURL(c.ID))
	info, err := YTDLPInfo{CookiesPath: s.CookiesPath, JSRuntime: s.JSRuntime}.VideoInfo(ctx, videoURL)
	if err != nil {
		return model.VideoRecord{}, nil, err
	}
	return RecordFromInfo(c, *info), info, nil
}

func (s *ListingSource) fetchListing(ctx context.Context, listURL string, playlistEnd int) (ytdlp.Playlist, error) {
	raw, err := ytdlp.FlatPlaylistJSON(ctx, ytdlp.FlatPlaylistOptions{
		SourceURL:   listURL,
		CookiesPath: s.CookiesPath,
		PlaylistEnd: playlistEnd,
		JSRuntime:   s.JSRuntime,
	})
	if err != nil {
		return ytdlp.Playlist{}, err
	}
	return ytdlp.ParsePlaylist(raw)
}

func (s *ListingSource) wait(ctx context.Context) error {
	if s.limiter == nil {
		d := s.Delay
		if d <= 0 {
			return ctx.Err()
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
	return s.limiter.Wait(ctx)
}

func candidateFromEntry(e ytdlp.PlaylistEntry) (model.VideoCandidate, bool) {
	if isPrivateEntryTitle(e.Title) {
		return model.VideoCandidate{}, false
	}
	videoURL := resolveVideoURL(e.ID, firstNonEmpty(e.URL, e.WebpageURL))
	id := channel.ExtractVideoID(videoURL)
	if id == "" {
		id = strings.TrimSpace(e.ID)
	}
	if id == "" {
		return model.VideoCandidate{}, false
	}
	if videoURL == "" {
		videoURL = channel.WatchURL(id)
	}
	c := model.VideoCandidate{
		ID:        id,
		URL:       videoURL,
		Title:     strings.TrimSpace(e.Title),
		ViewCount: e.ViewCount,
	}
	if e.Duration != nil {
		d := int(*e.Duration + 0.5)
		c.DurationSeconds = &d
	}
	return c, true
}

func isPrivateEntryTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t == "[Private video]" || t == "[Deleted video]"
}

func resolveVideoURL(videoID, maybeURL string) string {
	u := strings.TrimSpace(maybeURL)
	if u != "" {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return u
		}
		if strings.HasPrefix(u, "watch?") || strings.HasPrefix(u, "/watch?") || strings.HasPrefix(u, "/shorts/") {
			return "https://www.youtube.com/" + strings.TrimPrefix(u, "/")
		}
		if len(u) == 11 {
			return channel.WatchURL(u)
		}
	}
	if strings.TrimSpace(videoID) != "" {
		return channel.WatchURL(strings.TrimSpace(videoID))
	}
	return ""
}
