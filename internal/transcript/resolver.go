package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"yt-channel-scan/internal/audio"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

const (
	StageService      = "service"
	StageCaptionTrack = "caption_track"
	StageAudio        = "audio"

	SourceService      = "transcript_service"
	SourceManualTrack  = "caption_track_manual"
	SourceAutoTrack    = "caption_track_auto"
	SourceTranscribed  = "openai_transcription"
	MethodCaptions     = "captions"
	MethodCaptionsThen = "captions_then_audio"
	MethodAudio        = "audio_transcribe"
)

var ErrNoCaptionTracks = errors.New("no caption tracks")

type Request struct {
	VideoID   string
	VideoURL  string
	Info      *ytdlp.VideoInfo
	Language  string
	AllowAuto bool
}

type Outcome struct {
	Text   string
	Source string
	Format string
}

// StageError carries the status a failed stage reports.
type StageError struct {
	Status model.TranscriptStatus
	Source string
	Format string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Status)
	}
	return e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(status model.TranscriptStatus, source string, err error) *StageError {
	return &StageError{Status: status, Source: source, Err: err}
}

type Stage interface {
	Name() string
	Resolve(ctx context.Context, req Request) (Outcome, error)
}

type Attempt struct {
	Stage  string                 `json:"stage"`
	Status model.TranscriptStatus `json:"status"`
	Err    string                 `json:"error,omitempty"`
}

type Result struct {
	Text     string
	Status   model.TranscriptStatus
	Source   string
	Format   string
	Method   string
	Err      string
	Attempts []Attempt
}

// Resolver runs stages in order until one yields text.
type Resolver struct {
	Stages []Stage
	Mode   model.TranscriptMode
	Log    zerolog.Logger
}

// InfoFetcher loads yt-dlp metadata for a video when the caller did not
// supply it.
type InfoFetcher interface {
	VideoInfo(ctx context.Context, videoURL string) (*ytdlp.VideoInfo, error)
}

type Deps struct {
	YouTube     *youtube.Client
	HTTPClient  *http.Client
	Info        InfoFetcher
	Downloader  audio.Downloader
	Transcriber audio.Transcriber
	Log         zerolog.Logger
}

// NewResolver builds the stage list for a transcript mode.
func NewResolver(mode model.TranscriptMode, deps Deps) *Resolver {
	log := deps.Log.With().Str("component", "transcript").Logger()
	service := &ServiceStage{Client: deps.YouTube, HTTP: deps.HTTPClient}
	track := &CaptionTrackStage{Info: deps.Info, HTTP: deps.HTTPClient}
	audioStage := &AudioStage{Downloader: deps.Downloader, Transcriber: deps.Transcriber}

	var stages []Stage
	switch mode {
	case model.ModeCaptions:
		stages = []Stage{service, track}
	case model.ModeAudio:
		stages = []Stage{audioStage}
	default:
		mode = model.ModeAuto
		stages = []Stage{service, track, audioStage}
	}
	return &Resolver{Stages: stages, Mode: mode, Log: log}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	res := Result{Status: model.TranscriptNotFound}
	var last *StageError
	var errText []string

	for _, st := range r.Stages {
		if err := ctx.Err(); err != nil {
			last = fail(model.TranscriptError, "", err)
			errText = append(errText, err.Error())
			break
		}
		out, err := runStage(ctx, st, req)
		if err == nil && strings.TrimSpace(out.Text) == "" {
			err = &StageError{Status: model.TranscriptNotFound, Source: out.Source, Format: out.Format, Err: errors.New("empty transcript")}
		}
		if err == nil {
			res.Text = out.Text
			res.Status = model.TranscriptOK
			res.Source = out.Source
			res.Format = out.Format
			res.Err = ""
			res.Attempts = append(res.Attempts, Attempt{Stage: st.Name(), Status: model.TranscriptOK})
			res.Method = r.method(st.Name())
			return res
		}
		var se *StageError
		if !errors.As(err, &se) {
			se = fail(model.TranscriptError, "", err)
		}
		se.Source = firstNonEmpty(se.Source, st.Name())
		if last == nil || failureWeight(se.Status) >= failureWeight(last.Status) {
			last = se
		}
		res.Attempts = append(res.Attempts, Attempt{Stage: st.Name(), Status: se.Status, Err: se.Error()})
		errText = append(errText, st.Name()+": "+se.Error())
		res.Method = r.method(st.Name())
		r.Log.Debug().Str("video_id", req.VideoID).Str("stage", st.Name()).Str("status", string(se.Status)).Err(se.Err).Msg("stage failed")
	}

	if res.Method == "" {
		res.Method = r.method("")
	}
	if last != nil {
		res.Status = last.Status
		res.Source = last.Source
		res.Format = last.Format
	}
	res.Err = strings.Join(errText, "; ")
	return res
}

// failureWeight ranks failure statuses by how much they tell the user. A
// later stage replaces an earlier failure unless it is less specific.
func failureWeight(status model.TranscriptStatus) int {
	switch status {
	case model.TranscriptNotFound:
		return 0
	case model.TranscriptError:
		return 1
	default:
		return 2
	}
}

func (r *Resolver) method(stage string) string {
	switch r.Mode {
	case model.ModeCaptions:
		return MethodCaptions
	case model.ModeAudio:
		return MethodAudio
	default:
		if stage == StageAudio {
			return MethodAudio
		}
		return MethodCaptionsThen
	}
}

func runStage(ctx context.Context, st Stage, req Request) (out Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fail(model.TranscriptError, "", fmt.Errorf("%s stage panicked: %v", st.Name(), p))
		}
	}()
	return st.Resolve(ctx, req)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
