package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

const (
	DefaultAPIBase  = "https://youtube.googleapis.com/"
	apiVersionPath  = "youtube/v3/"
	apiPageSize     = 50
	quotaReasonCode = "quotaExceeded"
)

type APIConfig struct {
	APIKey     string
	// BaseURL is the API root; generated calls and videos.list append
	// "youtube/v3/<resource>" to it.
	BaseURL    string
	HTTPClient *http.Client
	Pages      *channel.PageResolver
	Delay      time.Duration
}

// APISource enumerates a channel through the uploads playlist of the
// YouTube Data API. Metrics from the API are authoritative; detail records
// are attached to candidates during enumeration.
type APISource struct {
	apiKey  string
	baseURL string
	client  *http.Client
	service *ytapi.Service
	pages   *channel.PageResolver
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewAPISource(ctx context.Context, cfg APIConfig, log zerolog.Logger) (*APISource, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrAPIKeyMissing
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultAPIBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	svc, err := ytapi.NewService(ctx,
		option.WithAPIKey(key),
		option.WithHTTPClient(client),
		option.WithEndpoint(base),
	)
	if err != nil {
		return nil, fmt.Errorf("create YouTube service: %w", err)
	}

	pages := cfg.Pages
	if pages == nil {
		pages = &channel.PageResolver{Client: client}
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultListingDelay
	}
	return &APISource{
		apiKey:  key,
		baseURL: base,
		client:  client,
		service: svc,
		pages:   pages,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     log.With().Str("component", "discovery").Str("source", "api").Logger(),
	}, nil
}

func (s *APISource) Enumerate(ctx context.Context, req EnumerateRequest) (Enumeration, error) {
	ch, err := s.resolveChannel(ctx, req.ChannelURL)
	if err != nil {
		return Enumeration{}, err
	}
	out := Enumeration{
		ChannelID:    ch.ID,
		ChannelTitle: ch.Title,
		Source:       "api",
	}
	out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("Resolved channel %s (uploads playlist %s)", ch.ID, ch.Uploads))

	items, err := s.playlistVideos(ctx, ch.Uploads, scanWindow(req.ScanLimit))
	if err != nil {
		return Enumeration{}, err
	}
	out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("Entries from API: %d", len(items)))

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	details, chunkErrs, err := s.videoDetails(ctx, ids)
	if err != nil {
		return Enumeration{}, err
	}
	for _, cerr := range chunkErrs {
		s.log.Warn().Err(cerr).Msg("video details chunk failed")
		out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("Video details unavailable (%v); those videos are fetched one by one.", cerr))
	}

	out.ViewsKnown = len(items) > 0
	missing := 0
	for _, it := range items {
		c := it
		if rec, ok := details[c.ID]; ok {
			r := rec
			c.Detail = &r
			c.ViewCount = r.ViewCount
			c.DurationSeconds = r.DurationSeconds
			if c.Title == "" {
				c.Title = r.Title
			}
		} else {
			missing++
		}
		if c.ViewCount == nil {
			out.ViewsKnown = false
		}
		out.Candidates = append(out.Candidates, c)
	}
	if missing > 0 {
		out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("API returned no details for %d video(s)", missing))
	}
	s.log.Debug().Str("channel_id", ch.ID).Int("candidates", len(out.Candidates)).Msg("api enumerated")
	return out, nil
}

// Detail returns the record attached during enumeration. Caption tracks are
// not exposed by the Data API, so the info is always nil.
func (s *APISource) Detail(ctx context.Context, c model.VideoCandidate) (model.VideoRecord, *ytdlp.VideoInfo, error) {
	if c.Detail != nil {
		return *c.Detail, nil, nil
	}
	recs, chunkErrs, err := s.videoDetails(ctx, []string{c.ID})
	if err != nil {
		return model.VideoRecord{}, nil, err
	}
	if len(chunkErrs) > 0 {
		return model.VideoRecord{}, nil, chunkErrs[0]
	}
	rec, ok := recs[c.ID]
	if !ok {
		return model.VideoRecord{}, nil, fmt.Errorf("%w: %s", ErrNoDetail, c.ID)
	}
	return rec, nil, nil
}

type resolvedChannel struct {
	ID      string
	Title   string
	Uploads string
}

func (s *APISource) resolveChannel(ctx context.Context, channelURL string) (resolvedChannel, error) {
	ref, err := channel.ParseReference(channelURL)
	if err != nil {
		return resolvedChannel{}, fmt.Errorf("%w: %v", ErrChannelNotFound, err)
	}

	call := s.service.Channels.List([]string{"snippet", "contentDetails"})
	switch ref.Kind {
	case channel.KindHandle:
		call = call.ForHandle(ref.Value)
	case channel.KindChannelID:
		call = call.Id(ref.Value)
	case channel.KindUsername:
		call = call.ForUsername(ref.Value)
	default:
		info, err := s.pages.Resolve(ctx, channelURL)
		if err != nil {
			return resolvedChannel{}, fmt.Errorf("%w: %s: %v", ErrChannelNotFound, channelURL, err)
		}
		call = call.Id(info.ChannelID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return resolvedChannel{}, err
	}
	resp, err := call.MaxResults(1).Context(ctx).Do()
	if err != nil {
		return resolvedChannel{}, s.wrapAPIError("channels.list", err)
	}
	if len(resp.Items) == 0 {
		return resolvedChannel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, channelURL)
	}
	item := resp.Items[0]
	out := resolvedChannel{ID: item.Id}
	if item.Snippet != nil {
		out.Title = item.Snippet.Title
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		out.Uploads = item.ContentDetails.RelatedPlaylists.Uploads
	}
	if out.Uploads == "" {
		return resolvedChannel{}, fmt.Errorf("%w: no uploads playlist for %s", ErrChannelNotFound, channelURL)
	}
	return out, nil
}

func (s *APISource) playlistVideos(ctx context.Context, playlistID string, maxItems int) ([]model.VideoCandidate, error) {
	out := make([]model.VideoCandidate, 0, apiPageSize)
	pageToken := ""
	for maxItems <= 0 || len(out) < maxItems {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := s.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(apiPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, s.wrapAPIError("playlistItems.list", err)
		}
		for _, it := range resp.Items {
			if it.ContentDetails == nil || it.ContentDetails.VideoId == "" {
				continue
			}
			c := model.VideoCandidate{
				ID:  it.ContentDetails.VideoId,
				URL: channel.WatchURL(it.ContentDetails.VideoId),
			}
			if it.Snippet != nil {
				c.Title = it.Snippet.Title
			}
			out = append(out, c)
			if maxItems > 0 && len(out) >= maxItems {
				break
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

// The generated client decodes statistics as uint64 with omitempty, which
// turns a hidden like count into 0. videos.list is decoded by hand so that
// absent counts stay nil.
type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		PublishedAt          string                  `json:"publishedAt"`
		ChannelID            string                  `json:"channelId"`
		ChannelTitle         string                  `json:"channelTitle"`
		Title                string                  `json:"title"`
		Description          string                  `json:"description"`
		Tags                 []string                `json:"tags"`
		CategoryID           string                  `json:"categoryId"`
		DefaultLanguage      string                  `json:"defaultLanguage"`
		DefaultAudioLanguage string                  `json:"defaultAudioLanguage"`
		Thumbnails           map[string]apiThumbnail `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount    *string `json:"viewCount"`
		LikeCount    *string `json:"likeCount"`
		CommentCount *string `json:"commentCount"`
	} `json:"statistics"`
}

type apiThumbnail struct {
	URL string `json:"url"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// videoDetails fetches statistics in chunks. A failed chunk is reported in
// chunkErrs and its ids stay absent from the map; quota exhaustion and
// cancellation abort the whole call.
func (s *APISource) videoDetails(ctx context.Context, ids []string) (out map[string]model.VideoRecord, chunkErrs []error, err error) {
	out = make(map[string]model.VideoRecord, len(ids))
	for start := 0; start < len(ids); start += apiPageSize {
		end := min(start+apiPageSize, len(ids))
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
		items, err := s.fetchVideos(ctx, ids[start:end])
		if err != nil {
			if errors.Is(err, ErrQuotaExceeded) || ctx.Err() != nil {
				return nil, nil, err
			}
			chunkErrs = append(chunkErrs, fmt.Errorf("videos %d-%d: %w", start+1, end, err))
			continue
		}
		for _, it := range items {
			if it.ID == "" {
				continue
			}
			out[it.ID] = recordFromAPI(it)
		}
	}
	return out, chunkErrs, nil
}

func (s *APISource) fetchVideos(ctx context.Context, ids []string) ([]videoItem, error) {
	q := url.Values{}
	q.Set("part", "snippet,contentDetails,statistics")
	q.Set("id", strings.Join(ids, ","))
	q.Set("maxResults", strconv.Itoa(apiPageSize))
	q.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+apiVersionPath+"videos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build videos.list request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read videos.list response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var eb apiErrorBody
		_ = json.Unmarshal(body, &eb)
		for _, e := range eb.Error.Errors {
			if e.Reason == quotaReasonCode {
				return nil, fmt.Errorf("videos.list: %w", ErrQuotaExceeded)
			}
		}
		msg := strings.TrimSpace(eb.Error.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("videos.list: status %d: %s", resp.StatusCode, msg)
	}

	var vl videoListResponse
	if err := json.Unmarshal(body, &vl); err != nil {
		return nil, fmt.Errorf("parse videos.list response: %w", err)
	}
	return vl.Items, nil
}

func recordFromAPI(it videoItem) model.VideoRecord {
	sn := it.Snippet
	thumb := func(key string) string {
		return sn.Thumbnails[key].URL
	}
	url := channel.WatchURL(it.ID)
	dur := ParseISODuration(it.ContentDetails.Duration)
	return model.VideoRecord{
		VideoID:              it.ID,
		URL:                  url,
		Title:                sn.Title,
		ViewCount:            parseCount(it.Statistics.ViewCount),
		LikeCount:            parseCount(it.Statistics.LikeCount),
		CommentCount:         parseCount(it.Statistics.CommentCount),
		PublishedAt:          sn.PublishedAt,
		DurationSeconds:      dur,
		IsShort:              channel.IsShort(url, dur),
		ChannelID:            sn.ChannelID,
		ChannelTitle:         sn.ChannelTitle,
		Description:          sn.Description,
		Tags:                 sn.Tags,
		CategoryID:           sn.CategoryID,
		DefaultLanguage:      sn.DefaultLanguage,
		DefaultAudioLanguage: sn.DefaultAudioLanguage,
		Thumbnails: model.Thumbnails{
			Default:  thumb("default"),
			Medium:   thumb("medium"),
			High:     thumb("high"),
			Standard: thumb("standard"),
			Maxres:   thumb("maxres"),
		},
	}
}

func parseCount(raw *string) *int64 {
	if raw == nil {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func (s *APISource) wrapAPIError(call string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, item := range gerr.Errors {
			if item.Reason == quotaReasonCode {
				return fmt.Errorf("%s: %w", call, ErrQuotaExceeded)
			}
		}
		if gerr.Code == http.StatusNotFound {
			return fmt.Errorf("%s: %w", call, ErrChannelNotFound)
		}
	}
	return fmt.Errorf("%s: %w", call, err)
}
