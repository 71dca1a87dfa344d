package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"

	"yt-channel-scan/internal/captions"
	"yt-channel-scan/internal/httpx"
	"yt-channel-scan/internal/model"
)

const maxCaptionBytes = 8 << 20

// ServiceStage reads caption tracks from the player response and fetches the
// chosen track as json3.
type ServiceStage struct {
	Client *youtube.Client
	HTTP   *http.Client
}

func (s *ServiceStage) Name() string { return StageService }

func (s *ServiceStage) Resolve(ctx context.Context, req Request) (Outcome, error) {
	client := s.Client
	if client == nil {
		client = &youtube.Client{HTTPClient: s.HTTP}
	}
	target := firstNonEmpty(req.VideoURL, req.VideoID)
	video, err := client.GetVideoContext(ctx, target)
	if err != nil {
		return Outcome{}, fail(classifyServiceError(err), SourceService, err)
	}
	if len(video.CaptionTracks) == 0 {
		return Outcome{}, fail(model.TranscriptDisabled, SourceService, ErrNoCaptionTracks)
	}
	track := pickServiceTrack(video.CaptionTracks, req.Language, req.AllowAuto)
	if track == nil {
		return Outcome{}, fail(model.TranscriptNotFound, SourceService,
			fmt.Errorf("no allowed caption track among %d (auto captions disabled)", len(video.CaptionTracks)))
	}

	text, format, fetchErr := s.fetchTrack(ctx, track.BaseURL)
	if text == "" {
		segText, segErr := transcriptSegments(ctx, client, video, track.LanguageCode)
		if segErr == nil && segText != "" {
			return Outcome{Text: segText, Source: SourceService, Format: "segments"}, nil
		}
		if fetchErr == nil {
			fetchErr = segErr
		}
		if fetchErr == nil {
			fetchErr = fmt.Errorf("downloaded %s captions but parsed empty", format)
		}
		return Outcome{}, &StageError{
			Status: classifyServiceError(fetchErr),
			Source: SourceService,
			Format: format,
			Err:    fetchErr,
		}
	}
	return Outcome{Text: text, Source: SourceService, Format: format}, nil
}

func (s *ServiceStage) fetchTrack(ctx context.Context, baseURL string) (string, string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", string(captions.FormatJSON3), errors.New("caption track has no URL")
	}
	u := baseURL
	if !strings.Contains(u, "fmt=") {
		sep := "&"
		if !strings.Contains(u, "?") {
			sep = "?"
		}
		u += sep + "fmt=json3"
	}
	body, err := download(ctx, s.HTTP, u)
	if err != nil {
		return "", string(captions.FormatJSON3), err
	}
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		return captions.DecodeXML(trimmed), string(captions.FormatSRV3), nil
	}
	return captions.DecodeJSON3(trimmed), string(captions.FormatJSON3), nil
}

func transcriptSegments(ctx context.Context, client *youtube.Client, video *youtube.Video, lang string) (string, error) {
	segs, err := client.GetTranscriptCtx(ctx, video, lang)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		parts = append(parts, seg.Text)
	}
	return captions.CleanText(strings.Join(parts, " ")), nil
}

// pickServiceTrack picks, in order: a manual track in the requested
// language, a manual English track, the best auto track when allowed, and
// finally the first allowed track of any kind.
func pickServiceTrack(tracks []youtube.CaptionTrack, lang string, allowAuto bool) *youtube.CaptionTrack {
	var manual, auto []*youtube.CaptionTrack
	for i := range tracks {
		t := &tracks[i]
		if isAutoTrack(*t) {
			auto = append(auto, t)
		} else {
			manual = append(manual, t)
		}
	}
	// Scores 0 and 1 are the requested language and English.
	if t := bestByLanguage(manual, lang); t != nil && languageScore(t.LanguageCode, lang) <= 1 {
		return t
	}
	if allowAuto {
		if t := bestByLanguage(auto, lang); t != nil {
			return t
		}
	}
	for i := range tracks {
		if allowAuto || !isAutoTrack(tracks[i]) {
			return &tracks[i]
		}
	}
	return nil
}

func isAutoTrack(t youtube.CaptionTrack) bool {
	return strings.EqualFold(t.Kind, "asr")
}

func bestByLanguage(tracks []*youtube.CaptionTrack, lang string) *youtube.CaptionTrack {
	var best *youtube.CaptionTrack
	bestScore := 0
	for _, t := range tracks {
		score := languageScore(t.LanguageCode, lang)
		if best == nil || score < bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func classifyServiceError(err error) model.TranscriptStatus {
	var playErr *youtube.ErrPlayabiltyStatus
	var statusErr youtube.ErrUnexpectedStatusCode
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &playErr):
		return model.TranscriptUnavailable
	case errors.Is(err, youtube.ErrTranscriptDisabled):
		return model.TranscriptDisabled
	case errors.As(err, &statusErr) && int(statusErr) == http.StatusTooManyRequests,
		httpx.IsRateLimited(err):
		return model.TranscriptBlocked
	default:
		return model.TranscriptError
	}
}

func download(ctx context.Context, client *http.Client, u string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build caption request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download captions: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("download captions: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
	if err != nil {
		return "", fmt.Errorf("read captions: %w", err)
	}
	return string(data), nil
}
