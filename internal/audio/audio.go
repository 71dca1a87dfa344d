package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yt-channel-scan/internal/runstore"
)

// MaxAudioBytes is the upload limit of the transcription endpoint.
const MaxAudioBytes int64 = 25 * 1024 * 1024

var (
	ErrAudioTooLarge    = errors.New("audio_too_large")
	ErrOpenAIKeyMissing = errors.New("OPENAI_API_KEY is not configured")
	ErrNoAudioFormat    = errors.New("no audio format under size limit")
)

// Downloader writes the audio stream of one video into dir and returns the
// file path.
type Downloader interface {
	Download(ctx context.Context, videoURL, dir string) (string, error)
}

// Transcriber turns an audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// FallbackDownloader tries each downloader in order and returns the first
// success. Errors from all attempts are joined.
type FallbackDownloader []Downloader

func (f FallbackDownloader) Download(ctx context.Context, videoURL, dir string) (string, error) {
	if len(f) == 0 {
		return "", fmt.Errorf("no audio downloader configured")
	}
	var errs []error
	for _, d := range f {
		path, err := d.Download(ctx, videoURL, dir)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, err)
		if errors.Is(err, ErrAudioTooLarge) {
			continue
		}
		clearDir(dir)
	}
	return "", errors.Join(errs...)
}

// WithTempDir runs fn with a fresh private directory that is removed when
// fn returns, whatever the outcome.
func WithTempDir(fn func(dir string) error) error {
	dir, release, err := runstore.TempWorkDir("ytaudio-")
	if err != nil {
		return err
	}
	defer release()
	return fn(dir)
}

// CheckSize rejects files above MaxAudioBytes.
func CheckSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat audio file: %w", err)
	}
	if info.Size() > MaxAudioBytes {
		return fmt.Errorf("%w (%.1fMB)", ErrAudioTooLarge, float64(info.Size())/1024/1024)
	}
	return nil
}

func clearDir(dir string) {
	if strings.TrimSpace(dir) == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(dir, e.Name()))
	}
}
