package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yt-channel-scan/internal/audio"
	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
)

// AudioStage downloads the audio stream into a scratch directory and sends
// it to the transcription endpoint.
type AudioStage struct {
	Downloader  audio.Downloader
	Transcriber audio.Transcriber
}

func (s *AudioStage) Name() string { return StageAudio }

func (s *AudioStage) Resolve(ctx context.Context, req Request) (Outcome, error) {
	if s.Downloader == nil {
		return Outcome{}, fail(model.TranscriptAudioDownloadFailed, SourceTranscribed, errors.New("no audio downloader configured"))
	}
	transcriber := s.Transcriber
	if transcriber == nil {
		transcriber = audio.MissingKeyTranscriber{}
	}
	videoURL := firstNonEmpty(req.VideoURL, channel.WatchURL(req.VideoID))

	var out Outcome
	err := audio.WithTempDir(func(dir string) error {
		path, err := s.Downloader.Download(ctx, videoURL, dir)
		if err != nil {
			return fail(model.TranscriptAudioDownloadFailed, SourceTranscribed, err)
		}
		text, err := transcriber.Transcribe(ctx, path)
		if err != nil {
			return &StageError{Status: model.TranscriptAudioTranscribeFailed, Source: SourceTranscribed, Format: "text", Err: err}
		}
		if strings.TrimSpace(text) == "" {
			return &StageError{Status: model.TranscriptAudioTranscribeFailed, Source: SourceTranscribed, Format: "text", Err: errors.New("empty_transcript")}
		}
		out = Outcome{Text: strings.TrimSpace(text), Source: SourceTranscribed, Format: "text"}
		return nil
	})
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return Outcome{}, se
		}
		return Outcome{}, fail(model.TranscriptAudioDownloadFailed, SourceTranscribed, fmt.Errorf("prepare audio scratch dir: %w", err))
	}
	return out, nil
}
