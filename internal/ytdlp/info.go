package ytdlp

import (
	"encoding/json"
	"fmt"
)

type Playlist struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Channel    string          `json:"channel"`
	ChannelID  string          `json:"channel_id"`
	WebpageURL string          `json:"webpage_url"`
	Entries    []PlaylistEntry `json:"entries"`
}

type PlaylistEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Duration   *float64 `json:"duration"`
	ViewCount  *int64   `json:"view_count"`
	// Nested tabs come back as entries of type "playlist".
	Type    string          `json:"_type"`
	Entries []PlaylistEntry `json:"entries"`
}

type CaptionFormat struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// VideoInfo is the subset of `yt-dlp -J` output used for filtering and
// caption access. Counts stay nil when yt-dlp omits them.
type VideoInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	WebpageURL        string                     `json:"webpage_url"`
	ViewCount         *int64                     `json:"view_count"`
	LikeCount         *int64                     `json:"like_count"`
	CommentCount      *int64                     `json:"comment_count"`
	Duration          *float64                   `json:"duration"`
	ChannelID         string                     `json:"channel_id"`
	Channel           string                     `json:"channel"`
	Uploader          string                     `json:"uploader"`
	UploadDate        string                     `json:"upload_date"`
	Timestamp         *int64                     `json:"timestamp"`
	Description       string                     `json:"description"`
	Tags              []string                   `json:"tags"`
	Categories        []string                   `json:"categories"`
	Language          string                     `json:"language"`
	Thumbnail         string                     `json:"thumbnail"`
	Subtitles         map[string][]CaptionFormat `json:"subtitles"`
	AutomaticCaptions map[string][]CaptionFormat `json:"automatic_captions"`
}

func ParsePlaylist(data []byte) (Playlist, error) {
	var p Playlist
	if err := json.Unmarshal(data, &p); err != nil {
		return Playlist{}, fmt.Errorf("parse yt-dlp playlist JSON: %w", err)
	}
	return p, nil
}

// FlattenEntries expands nested tab playlists into a single video list.
func (p Playlist) FlattenEntries() []PlaylistEntry {
	out := make([]PlaylistEntry, 0, len(p.Entries))
	var walk func(entries []PlaylistEntry)
	walk = func(entries []PlaylistEntry) {
		for _, e := range entries {
			if e.Type == "playlist" || len(e.Entries) > 0 {
				walk(e.Entries)
				continue
			}
			out = append(out, e)
		}
	}
	walk(p.Entries)
	return out
}

func ParseVideoInfo(data []byte) (VideoInfo, error) {
	var v VideoInfo
	if err := json.Unmarshal(data, &v); err != nil {
		return VideoInfo{}, fmt.Errorf("parse yt-dlp video JSON: %w", err)
	}
	return v, nil
}

func (v VideoInfo) DurationSeconds() *int {
	if v.Duration == nil {
		return nil
	}
	d := int(*v.Duration + 0.5)
	return &d
}
