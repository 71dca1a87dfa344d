package audio

import (
	"context"

	"github.com/rs/zerolog"

	"yt-channel-scan/internal/ytdlp"
)

// YTDLPDownloader fetches the smallest acceptable audio stream with yt-dlp.
type YTDLPDownloader struct {
	CookiesPath string
	JSRuntime   string
	Log         zerolog.Logger
}

func (d YTDLPDownloader) Download(ctx context.Context, videoURL, dir string) (string, error) {
	lastPct := ""
	path, err := ytdlp.DownloadAudio(ctx, ytdlp.AudioOptions{
		VideoURL:    videoURL,
		OutputDir:   dir,
		CookiesPath: d.CookiesPath,
		JSRuntime:   d.JSRuntime,
		Progress: func(stream ytdlp.OutputStream, line string) {
			if stream != ytdlp.StreamStdout {
				return
			}
			if pct, ok := ytdlp.ParseDownloadPercent(line); ok && pct != lastPct {
				lastPct = pct
				d.Log.Trace().Str("url", videoURL).Str("progress", pct).Msg("audio download")
			}
		},
	})
	if err != nil {
		return "", err
	}
	if err := CheckSize(path); err != nil {
		return "", err
	}
	return path, nil
}
