package model

import (
	"fmt"
	"strings"
)

type ContentType string

const (
	ContentShorts   ContentType = "shorts"
	ContentLongform ContentType = "longform"
	ContentBoth     ContentType = "both"
)

func ParseContentType(raw string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "shorts", "short":
		return ContentShorts, nil
	case "longform", "videos", "video", "long":
		return ContentLongform, nil
	case "both", "all":
		return ContentBoth, nil
	default:
		return "", fmt.Errorf("invalid content type %q (expected shorts, longform, or both)", strings.TrimSpace(raw))
	}
}

// Matches reports whether a video with the given short-form classification
// belongs to this content type.
func (c ContentType) Matches(isShort bool) bool {
	switch c {
	case ContentShorts:
		return isShort
	case ContentLongform:
		return !isShort
	default:
		return true
	}
}

type TranscriptMode string

const (
	ModeCaptions TranscriptMode = "captions"
	ModeAudio    TranscriptMode = "audio"
	ModeAuto     TranscriptMode = "auto"
)

func ParseTranscriptMode(raw string) (TranscriptMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto", "auto-fallback", "captions-then-audio":
		return ModeAuto, nil
	case "captions", "captions-only":
		return ModeCaptions, nil
	case "audio", "audio-only":
		return ModeAudio, nil
	default:
		return "", fmt.Errorf("invalid transcript mode %q (expected captions, audio, or auto)", strings.TrimSpace(raw))
	}
}

type TranscriptStatus string

const (
	TranscriptOK                    TranscriptStatus = "ok"
	TranscriptNotFound              TranscriptStatus = "not_found"
	TranscriptDisabled              TranscriptStatus = "disabled"
	TranscriptUnavailable           TranscriptStatus = "unavailable"
	TranscriptBlocked               TranscriptStatus = "blocked"
	TranscriptError                 TranscriptStatus = "error"
	TranscriptAudioDownloadFailed   TranscriptStatus = "audio_download_failed"
	TranscriptAudioTranscribeFailed TranscriptStatus = "audio_transcribe_failed"
)

// VideoCandidate is a video found during enumeration, before its detail is known.
type VideoCandidate struct {
	ID              string       `json:"id"`
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	DurationSeconds *int         `json:"duration_seconds,omitempty"`
	ViewCount       *int64       `json:"view_count,omitempty"`
	State           string       `json:"state"`
	Reason          string       `json:"reason,omitempty"`
	Detail          *VideoRecord `json:"-"`
}

type Thumbnails struct {
	Default  string `json:"default,omitempty"`
	Medium   string `json:"medium,omitempty"`
	High     string `json:"high,omitempty"`
	Standard string `json:"standard,omitempty"`
	Maxres   string `json:"maxres,omitempty"`
}

// VideoRecord backs one output row. Nil pointers mean the value is unknown.
type VideoRecord struct {
	Rank int `json:"rank"`

	VideoID string `json:"video_id"`
	URL     string `json:"url"`
	Title   string `json:"title"`

	ViewCount    *int64 `json:"view_count"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`

	PublishedAt     string `json:"published_at,omitempty"`
	DurationSeconds *int   `json:"duration_seconds"`
	IsShort         bool   `json:"is_short"`

	ChannelID            string     `json:"channel_id,omitempty"`
	ChannelTitle         string     `json:"channel_title,omitempty"`
	Description          string     `json:"description,omitempty"`
	Tags                 []string   `json:"tags,omitempty"`
	CategoryID           string     `json:"category_id,omitempty"`
	DefaultLanguage      string     `json:"default_language,omitempty"`
	DefaultAudioLanguage string     `json:"default_audio_language,omitempty"`
	Thumbnails           Thumbnails `json:"thumbnails"`

	Transcript       string           `json:"transcript"`
	TranscriptSource string           `json:"transcript_source"`
	TranscriptFormat string           `json:"transcript_format"`
	TranscriptStatus TranscriptStatus `json:"transcript_status"`
	TranscriptError  string           `json:"transcript_error,omitempty"`
	TranscriptMethod string           `json:"transcript_method,omitempty"`
}

func (r VideoRecord) Views() (int64, bool) {
	if r.ViewCount == nil {
		return 0, false
	}
	return *r.ViewCount, true
}

func Int64Ptr(v int64) *int64 { return &v }

func IntPtr(v int) *int { return &v }
