package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

// NativeDownloader streams an audio-only format through the innertube
// client without spawning yt-dlp.
type NativeDownloader struct {
	Client *youtube.Client
	Log    zerolog.Logger
}

func NewNativeDownloader(httpClient *http.Client, log zerolog.Logger) NativeDownloader {
	return NativeDownloader{
		Client: &youtube.Client{HTTPClient: httpClient},
		Log:    log,
	}
}

func (d NativeDownloader) Download(ctx context.Context, videoURL, dir string) (string, error) {
	client := d.Client
	if client == nil {
		client = &youtube.Client{}
	}
	video, err := client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("resolve video: %w", err)
	}

	candidates := make([]*youtube.Format, 0, len(video.Formats))
	for i := range video.Formats {
		f := &video.Formats[i]
		if strings.HasPrefix(f.MimeType, "audio/") {
			candidates = append(candidates, f)
		}
	}
	format, err := pickAudioFormat(candidates)
	if err != nil {
		return "", err
	}

	stream, _, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("open audio stream: %w", err)
	}
	defer stream.Close()

	path := filepath.Join(dir, video.ID+"."+extensionFor(format.MimeType))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(stream, MaxAudioBytes+1))
	closeErr := f.Close()
	if copyErr != nil {
		return "", fmt.Errorf("download audio stream: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close audio file: %w", closeErr)
	}
	if n > MaxAudioBytes {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w (over %dMB)", ErrAudioTooLarge, MaxAudioBytes/1024/1024)
	}
	d.Log.Debug().Str("video_id", video.ID).Int("itag", format.ItagNo).Int64("bytes", n).Msg("native audio downloaded")
	return path, nil
}

// pickAudioFormat prefers the highest bitrate whose declared size fits the
// upload cap, then the lowest bitrate when no size is declared.
func pickAudioFormat(candidates []*youtube.Format) (*youtube.Format, error) {
	if len(candidates) == 0 {
		return nil, errors.New("no audio formats available")
	}
	var best *youtube.Format
	for _, f := range candidates {
		if f.ContentLength <= 0 || f.ContentLength > MaxAudioBytes {
			continue
		}
		if best == nil || bitrateForFormat(f) > bitrateForFormat(best) {
			best = f
		}
	}
	if best != nil {
		return best, nil
	}
	for _, f := range candidates {
		if f.ContentLength > MaxAudioBytes {
			continue
		}
		if best == nil || bitrateForFormat(f) < bitrateForFormat(best) {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoAudioFormat
	}
	return best, nil
}

func bitrateForFormat(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return 0
}

func extensionFor(mimeType string) string {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mt, "audio/mp4"):
		return "m4a"
	case strings.Contains(mt, "audio/webm"):
		return "webm"
	default:
		return "audio"
	}
}
