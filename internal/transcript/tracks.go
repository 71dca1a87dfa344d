package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"yt-channel-scan/internal/captions"
	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/httpx"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

var formatOrder = []captions.Format{
	captions.FormatVTT,
	captions.FormatTTML,
	captions.FormatSRV3,
	captions.FormatSRV2,
	captions.FormatSRV1,
	captions.FormatJSON3,
}

// CaptionTrack is one downloadable caption file listed by yt-dlp.
type CaptionTrack struct {
	Language string
	Format   captions.Format
	URL      string
	Auto     bool
}

func (t CaptionTrack) Source() string {
	if t.Auto {
		return SourceAutoTrack
	}
	return SourceManualTrack
}

// CaptionTrackStage downloads a subtitle file listed in yt-dlp metadata.
type CaptionTrackStage struct {
	Info InfoFetcher
	HTTP *http.Client
}

func (s *CaptionTrackStage) Name() string { return StageCaptionTrack }

func (s *CaptionTrackStage) Resolve(ctx context.Context, req Request) (Outcome, error) {
	info := req.Info
	if info == nil {
		if s.Info == nil {
			return Outcome{}, fail(model.TranscriptNotFound, SourceManualTrack, errors.New("no video metadata for caption tracks"))
		}
		videoURL := firstNonEmpty(req.VideoURL, channel.WatchURL(req.VideoID))
		fetched, err := s.Info.VideoInfo(ctx, videoURL)
		if err != nil {
			return Outcome{}, fail(classifyTrackError(err), SourceManualTrack, fmt.Errorf("load caption tracks: %w", err))
		}
		info = fetched
	}

	ranked := RankTracks(*info, req.Language, req.AllowAuto)
	if len(ranked) == 0 {
		return Outcome{}, fail(model.TranscriptNotFound, SourceManualTrack, ErrNoCaptionTracks)
	}
	track := ranked[0]

	raw, err := download(ctx, s.HTTP, track.URL)
	if err != nil {
		return Outcome{}, &StageError{Status: classifyTrackError(err), Source: track.Source(), Format: string(track.Format), Err: err}
	}
	text := captions.Decode(track.Format, raw)
	if text == "" {
		return Outcome{}, &StageError{
			Status: model.TranscriptError,
			Source: track.Source(),
			Format: string(track.Format),
			Err:    fmt.Errorf("downloaded %s captions but parsed empty", track.Format),
		}
	}
	return Outcome{Text: text, Source: track.Source(), Format: string(track.Format)}, nil
}

// RankTracks orders caption files: manual before auto (auto only when
// allowed), then by language preference, then by format preference.
func RankTracks(info ytdlp.VideoInfo, lang string, allowAuto bool) []CaptionTrack {
	var out []CaptionTrack
	out = append(out, bucketTracks(info.Subtitles, false)...)
	if allowAuto {
		out = append(out, bucketTracks(info.AutomaticCaptions, true)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Auto != b.Auto {
			return !a.Auto
		}
		if la, lb := languageScore(a.Language, lang), languageScore(b.Language, lang); la != lb {
			return la < lb
		}
		if fa, fb := formatScore(a.Format), formatScore(b.Format); fa != fb {
			return fa < fb
		}
		return a.Language < b.Language
	})
	return out
}

func bucketTracks(bucket map[string][]ytdlp.CaptionFormat, auto bool) []CaptionTrack {
	out := make([]CaptionTrack, 0, len(bucket))
	for lang, formats := range bucket {
		for _, f := range formats {
			if strings.TrimSpace(f.URL) == "" || strings.TrimSpace(f.Ext) == "" {
				continue
			}
			out = append(out, CaptionTrack{
				Language: lang,
				Format:   captions.ParseFormat(f.Ext),
				URL:      f.URL,
				Auto:     auto,
			})
		}
	}
	return out
}

func languageScore(code, want string) int {
	c := strings.ToLower(strings.TrimSpace(code))
	w := strings.ToLower(strings.TrimSpace(want))
	if w != "" && (c == w || strings.HasPrefix(c, w+"-")) {
		return 0
	}
	switch c {
	case "en", "en-us", "en-gb":
		return 1
	}
	return 2
}

func formatScore(f captions.Format) int {
	for i, known := range formatOrder {
		if f == known {
			return i
		}
	}
	return len(formatOrder)
}

func classifyTrackError(err error) model.TranscriptStatus {
	if httpx.IsRateLimited(err) {
		return model.TranscriptBlocked
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return model.TranscriptBlocked
	case strings.Contains(msg, "private video") || strings.Contains(msg, "video unavailable") || strings.Contains(msg, "sign in to confirm"):
		return model.TranscriptUnavailable
	default:
		return model.TranscriptError
	}
}
